package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (provider key secrets, webhook secrets,
// database URLs). String() and MarshalJSON() return a redacted placeholder;
// Unmask() retrieves the plaintext where it is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
// Invoked by fmt functions via the fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Usage should be
// limited to constructing Authorization headers, HMAC keys, and connection
// strings.
func (s SecretString) Unmask() string {
	return string(s)
}
