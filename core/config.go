package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Read preference modes accepted in Config.ReadPreference and WithReadPreference
const (
	ReadPrimary            = "primary"
	ReadPrimaryPreferred   = "primaryPreferred"
	ReadSecondary          = "secondary"
	ReadSecondaryPreferred = "secondaryPreferred"
	ReadNearest            = "nearest"
)

// Config struct holds the mongopipe configuration
type Config struct {
	// MongoDB connection string, eg. mongodb://localhost:27017
	ConnString string `mapstructure:"connection_string" json:"connection_string" yaml:"connection_string" jsonschema:"title=Connection String" validate:"required"`

	// Database holding the collections the pipelines read and write
	Database string `mapstructure:"database" json:"database" yaml:"database" jsonschema:"title=Database" validate:"required"`

	// Log level: debug, info, warn or error
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`

	// Log format: json or plain
	LogFormat string `mapstructure:"log_format" json:"log_format" yaml:"log_format" jsonschema:"title=Log Format,enum=json,enum=plain" validate:"omitempty,oneof=json plain"`

	// Maximum number of entities held by the cache of a single result pass.
	// Zero keeps every entity of the pass
	EntityCacheSize int `mapstructure:"entity_cache_size" json:"entity_cache_size" yaml:"entity_cache_size" jsonschema:"title=Entity Cache Size,default=0" validate:"gte=0"`

	// When set to true documents with the same _id are decoded into separate objects
	DisableEntityCache bool `mapstructure:"disable_entity_cache" json:"disable_entity_cache" yaml:"disable_entity_cache" jsonschema:"title=Disable Entity Cache,default=false"`

	// Store civil date times as ISO-8601 strings instead of packed numbers
	DateTimeAsString bool `mapstructure:"date_time_as_string" json:"date_time_as_string" yaml:"date_time_as_string" jsonschema:"title=Date Time As String,default=false"`

	// Store time.Time values as epoch nanoseconds instead of native datetimes
	InstantAsNanos bool `mapstructure:"instant_as_nanos" json:"instant_as_nanos" yaml:"instant_as_nanos" jsonschema:"title=Instant As Nanoseconds,default=false"`

	// Default read preference for aggregations and finds
	ReadPreference string `mapstructure:"read_preference" json:"read_preference" yaml:"read_preference" jsonschema:"title=Read Preference,enum=primary,enum=primaryPreferred,enum=secondary,enum=secondaryPreferred,enum=nearest" validate:"omitempty,oneof=primary primaryPreferred secondary secondaryPreferred nearest"`

	// Let aggregation stages write temporary files
	AllowDiskUse bool `mapstructure:"allow_disk_use" json:"allow_disk_use" yaml:"allow_disk_use" jsonschema:"title=Allow Disk Use,default=false"`

	// Number of documents per cursor batch, zero uses the server default
	BatchSize int32 `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size" jsonschema:"title=Batch Size" validate:"gte=0"`

	// Number of attempts made to reach the server on connect
	ConnectRetries uint `mapstructure:"connect_retries" json:"connect_retries" yaml:"connect_retries" jsonschema:"title=Connect Retries,default=3"`

	// Collection name overrides keyed by Go type name
	Collections map[string]string `mapstructure:"collections" json:"collections" yaml:"collections" jsonschema:"title=Collections"`
}

var validate = validator.New()

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("core: invalid config: %w", err)
	}
	return nil
}
