package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/localnerve/itsm-api/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON is a document body column backed by gorm.io/datatypes.JSON with per-dialect column types
type JSON struct {
	datatypes.JSON
}

// NewJSON encodes a document body.
func NewJSON(fields map[string]interface{}) (JSON, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return JSON{}, err
	}
	return JSON{JSON: datatypes.JSON(b)}, nil
}

// Fields decodes the body into a field map with integral numbers as int64.
func (j JSON) Fields() (map[string]interface{}, error) {
	if len(j.JSON) == 0 {
		return map[string]interface{}{}, nil
	}
	return types.DecodeObject(j.JSON)
}

// Value promotes the embedded JSON's Value method
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan promotes the embedded JSON's Scan method
func (j *JSON) Scan(value interface{}) error {
	return j.JSON.Scan(value)
}

// GormDBDataType ensures the correct data type is used for each database driver.
// MSSQL has no json type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
