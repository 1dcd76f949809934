package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{"minimal", Config{ConnString: "mongodb://localhost:27017", Database: "shop"}, false},
		{"missing database", Config{ConnString: "mongodb://localhost:27017"}, true},
		{"missing connection", Config{Database: "shop"}, true},
		{"bad log level", Config{ConnString: "mongodb://db", Database: "shop", LogLevel: "trace"}, true},
		{"bad read preference", Config{ConnString: "mongodb://db", Database: "shop", ReadPreference: "any"}, true},
		{"negative batch", Config{ConnString: "mongodb://db", Database: "shop", BatchSize: -1}, true},
		{"full", Config{
			ConnString:      "mongodb://db",
			Database:        "shop",
			LogLevel:        "debug",
			LogFormat:       "json",
			EntityCacheSize: 100,
			ReadPreference:  ReadNearest,
			BatchSize:       100,
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
