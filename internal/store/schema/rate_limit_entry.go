package schema

import "time"

// RateLimitEntry tracks successful write attempts per network origin within a
// fixed window. Rows are logically expired once the window lapses and are
// periodically purged.
type RateLimitEntry struct {
	// Origin is the rate-limit key (client IP, optionally folded with a fingerprint hash)
	Origin string `gorm:"column:origin;primaryKey;type:text"`
	// Attempts is the number of counted writes in the current window
	Attempts int `gorm:"column:attempts;not null;default:0"`
	// WindowExpiresAt marks the end of the current window
	WindowExpiresAt time.Time `gorm:"column:window_expires_at;not null;type:timestamptz;index"`
	// UpdatedAt is the timestamp of the last increment
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	// CreatedAt is the timestamp the origin was first seen
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for the RateLimitEntry model
func (RateLimitEntry) TableName() string {
	return "rate_limit_entries"
}
