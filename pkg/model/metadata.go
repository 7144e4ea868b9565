// pkg/model/metadata.go
package model

import "strings"

// TableMetadata contains the structure information for a database table
type TableMetadata struct {
	Schema  string           // Schema name
	Table   string           // Table name
	Columns []ColumnMetadata // Column definitions
}

// ColumnMetadata describes a column as seen by a database source or sink
type ColumnMetadata struct {
	Name     string       // Column name
	DataType string       // Database type name as reported by the driver
	SQLType  string       // Mapped sink type
	Semantic SemanticType // Semantic type of the cells
	Nullable bool         // Whether column allows NULL values
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *ColumnMetadata {
	normalizedName := strings.ToLower(name)
	for i, col := range tm.Columns {
		if strings.ToLower(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

// QualifiedName returns schema.table, or just the table name when no schema is set
func (tm *TableMetadata) QualifiedName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}
