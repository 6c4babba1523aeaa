package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential such as the database URL. It redacts itself
// in fmt output, JSON and slog records; Unmask returns the raw value.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON keeps secrets out of serialized config dumps.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue implements slog.LogValuer so config can be logged as an attribute.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the plaintext. Only pass it to the driver that needs it.
func (s SecretString) Unmask() string {
	return string(s)
}
