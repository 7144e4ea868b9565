// pkg/converter/mapping.go
package converter

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// Patterns for type extraction
var precisionScalePattern = regexp.MustCompile(`(?:NUMBER|NUMERIC|DECIMAL)\((\d+)(?:,\s*(\d+))?\)`)

// getBaseType extracts the base type from a complex type definition
func getBaseType(fullType string) string {
	parts := strings.Split(fullType, "(")
	return strings.TrimSpace(parts[0])
}

// SemanticFromDatabaseType maps a source column type (Snowflake or PostgreSQL naming)
// to the semantic type the coercer should target. Unknown types map to string.
func (c *TypeConverter) SemanticFromDatabaseType(dbType string) model.SemanticType {
	if dbType == "" || strings.EqualFold(dbType, "NULL") {
		return model.TypeString
	}

	dbType = strings.ToUpper(strings.TrimSpace(dbType))
	switch getBaseType(dbType) {
	case "NUMBER", "NUMERIC", "DECIMAL":
		return numberSemantic(dbType)
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "BYTEINT", "FIXED", "INT2", "INT4", "INT8":
		return model.TypeInteger
	case "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL":
		return model.TypeFloat
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMP_NTZ", "TIMESTAMP_TZ", "TIMESTAMP_LTZ", "TIMESTAMPTZ":
		return model.TypeDate
	case "BOOLEAN", "BOOL":
		return model.TypeBoolean
	case "VARCHAR", "TEXT", "STRING", "CHAR", "CHARACTER", "CHARACTER VARYING":
		return model.TypeString
	default:
		c.logger.Warn("Unknown database type encountered, treating as string",
			zap.String("type", dbType))
		return model.TypeString
	}
}

// numberSemantic treats NUMBER(p,0) as integer and everything else as float
func numberSemantic(fullType string) model.SemanticType {
	matches := precisionScalePattern.FindStringSubmatch(fullType)
	if len(matches) < 2 {
		return model.TypeFloat
	}

	// Scale defaults to 0 if not specified
	if len(matches) > 2 && matches[2] != "" {
		scale, err := strconv.Atoi(matches[2])
		if err != nil || scale != 0 {
			return model.TypeFloat
		}
	}
	return model.TypeInteger
}
