// pkg/converter/converter.go
package converter

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// TypeConverter maps cleaned columns to sink SQL types and moves cells
// across the database/sql boundary
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Timezone applied to dates read from drivers without location
	DefaultTimezone string
	// Whether to treat empty strings as missing when reading from a source
	EmptyStringAsNull bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		DefaultTimezone:   "UTC",
		EmptyStringAsNull: true,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// SQLType returns the PostgreSQL type used to store a column of the given semantic type
func (c *TypeConverter) SQLType(t model.SemanticType) string {
	switch t {
	case model.TypeInteger:
		return "BIGINT"
	case model.TypeFloat:
		return "DOUBLE PRECISION"
	case model.TypeDate:
		return "TIMESTAMP"
	case model.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// MetadataFor describes a cleaned table as a sink table definition
func (c *TypeConverter) MetadataFor(schema, table string, t *model.Table) *model.TableMetadata {
	meta := &model.TableMetadata{Schema: schema, Table: table}
	for _, col := range t.Columns() {
		semantic := col.Type
		if semantic == model.TypeUnknown {
			semantic = model.TypeString
		}
		meta.Columns = append(meta.Columns, model.ColumnMetadata{
			Name:     col.Name,
			SQLType:  c.SQLType(semantic),
			Semantic: semantic,
			Nullable: true,
		})
	}
	return meta
}

// GenerateColumnDefinitions creates PostgreSQL column definitions
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata) []string {
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		sqlType := col.SQLType
		if sqlType == "" {
			sqlType = c.SQLType(col.Semantic)
		}

		nullability := "NULL"
		if !col.Nullable {
			nullability = "NOT NULL"
		}

		definitions = append(definitions, fmt.Sprintf("%s %s %s",
			QuoteIdentifier(col.Name),
			sqlType,
			nullability))
	}

	return definitions
}

// ToSQLValue converts a cell to a database/sql argument; missing cells become NULL
func (c *TypeConverter) ToSQLValue(v model.Value) interface{} {
	switch v.Kind {
	case model.KindString:
		return v.Str
	case model.KindInt:
		return v.Int
	case model.KindFloat:
		return v.Float
	case model.KindBool:
		return v.Bool
	case model.KindDate:
		return v.Time
	default:
		return nil
	}
}

// FromDriverValue converts a scanned driver value into a cell
func (c *TypeConverter) FromDriverValue(raw interface{}) model.Value {
	switch v := raw.(type) {
	case nil:
		return model.Missing()
	case []byte:
		return c.fromString(string(v))
	case string:
		return c.fromString(v)
	case sql.RawBytes:
		return c.fromString(string(v))
	case int64:
		return model.IntValue(v)
	case int32:
		return model.IntValue(int64(v))
	case int:
		return model.IntValue(int64(v))
	case float64:
		return model.FloatValue(v)
	case float32:
		return model.FloatValue(float64(v))
	case bool:
		return model.BoolValue(v)
	case time.Time:
		if v.Location() == time.Local && c.config.DefaultTimezone != "" {
			if loc, err := time.LoadLocation(c.config.DefaultTimezone); err == nil {
				v = v.In(loc)
			}
		}
		return model.DateValue(v)
	default:
		c.logger.Debug("Unhandled driver value type, storing as text",
			zap.String("type", fmt.Sprintf("%T", raw)))
		return model.StringValue(fmt.Sprintf("%v", raw))
	}
}

func (c *TypeConverter) fromString(s string) model.Value {
	if s == "" && c.config.EmptyStringAsNull {
		return model.Missing()
	}
	return model.StringValue(s)
}

// QuoteIdentifier properly quotes and escapes a PostgreSQL identifier
func QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}
