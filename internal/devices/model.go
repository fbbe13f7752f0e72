package devices

import "time"

// Schema versions recorded on each device row. Version 1 rows were created when the
// registry was keyed by push token and may carry an empty or duplicated email.
// Version 2 rows are keyed by email.
const (
	SchemaVersionTokenKeyed = 1
	SchemaVersionEmailKeyed = 2
)

// Device captures one client installation and the push token used to reach it.
// Email uniqueness is enforced by the registration transaction rather than a
// database constraint: rows that predate the email key can hold duplicate or
// empty emails until the reconciler collapses them.
type Device struct {
	ID            string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Token         string    `gorm:"column:token;size:512;not null;index" json:"token"`
	Email         string    `gorm:"column:email;size:320;index" json:"email"`
	Name          string    `gorm:"column:name;size:320" json:"name,omitempty"`
	Phone         string    `gorm:"column:phone;size:32" json:"phone,omitempty"`
	SchemaVersion int       `gorm:"column:schema_version;not null;default:2" json:"-"`
	LastActiveAt  time.Time `gorm:"column:last_active_at" json:"lastActive"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName exposes the table backing registered devices.
func (Device) TableName() string {
	return "notification_devices"
}
