package core

import "strings"

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// ForeignKeyRelation maps a local column to a column of another table.
type ForeignKeyRelation struct {
	Column           string `json:"column" yaml:"column"`
	ReferencedTable  string `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumn string `json:"referenced_column" yaml:"referenced_column"`
}

// ForeignKey is a named foreign key constraint.
type ForeignKey struct {
	Name      string               `json:"name,omitempty" yaml:"name,omitempty"`
	Relations []ForeignKeyRelation `json:"relations" yaml:"relations"`
}

// TableSchema describes a table's columns and declared foreign keys.
type TableSchema struct {
	Name        string         `json:"name" yaml:"name"`
	Columns     []ColumnSchema `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKey   `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// HasColumn reports whether the table has a column with the given name.
func (t *TableSchema) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the table's column names in declaration order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// DatabaseSchema is table metadata for a database.
type DatabaseSchema struct {
	Tables []TableSchema `json:"tables" yaml:"tables"`
}

// Table finds a table by name. A qualified name such as "public.orders" also
// matches an unqualified entry and the reverse.
func (s *DatabaseSchema) Table(name string) *TableSchema {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	short := unqualified(name)
	for i := range s.Tables {
		if unqualified(s.Tables[i].Name) == short {
			return &s.Tables[i]
		}
	}
	return nil
}

func unqualified(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
