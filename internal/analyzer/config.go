package analyzer

const (
	DefaultEndpoint    = "http://localhost:5000/api/analysis"
	DefaultFieldName   = "file"
	DefaultContentType = "application/dicom"

	// DefaultServerMessage is shown when a failed response carries no message.
	DefaultServerMessage = "Server Error"
)

// Config controls the analysis client.
type Config struct {
	Endpoint    string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	FieldName   string `json:"field_name,omitempty" mapstructure:"field_name"`
	ContentType string `json:"content_type,omitempty" mapstructure:"content_type"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.FieldName == "" {
		c.FieldName = DefaultFieldName
	}
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	return c
}
