package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the flat environment-variable view of ServerConfig.
//
//	PORT                  Server port (default "8080")
//	ENVIRONMENT           Runtime environment (default "development")
//	BROKER_STRATEGY       "placeholder" (default) or "versioned"
//	STORAGE_TYPE          "memory" (default) or "s3"
//	STORAGE_BUCKET        Bucket name (default "file-broker")
//	S3_REGION             Region for the S3 gateway
//	S3_ACCESS_KEY_ID      Static credentials; default AWS chain when empty
//	S3_SECRET_ACCESS_KEY
//	S3_ENDPOINT           Custom endpoint for MinIO/Ceph
//	S3_USE_PATH_STYLE     Path-style addressing (default true with endpoint)
//	S3_CREATE_BUCKET      Create the bucket on startup
type envConfig struct {
	Port        string `env:"PORT" env-default:""`
	Environment string `env:"ENVIRONMENT" env-default:""`
	Strategy    string `env:"BROKER_STRATEGY" env-default:""`
	StorageType string `env:"STORAGE_TYPE" env-default:""`
	Bucket      string `env:"STORAGE_BUCKET" env-default:""`

	S3Region          string `env:"S3_REGION" env-default:""`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint        string `env:"S3_ENDPOINT" env-default:""`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
}

// WithEnv applies environment-variable overrides on top of the defaults and
// any options applied before it.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return err
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.Strategy != "" {
			c.Strategy = env.Strategy
		}
		if env.StorageType != "" {
			c.StorageType = env.StorageType
		}
		if env.Bucket != "" {
			c.Bucket = env.Bucket
		}

		if env.S3Region != "" {
			c.S3.Region = env.S3Region
		}
		if env.S3AccessKeyID != "" {
			c.S3.AccessKeyID = env.S3AccessKeyID
		}
		if env.S3SecretAccessKey != "" {
			c.S3.SecretAccessKey = env.S3SecretAccessKey
		}
		if env.S3Endpoint != "" {
			c.S3.Endpoint = env.S3Endpoint
		}
		if env.S3UsePathStyle {
			c.S3.UsePathStyle = true
		}
		if env.S3CreateBucket {
			c.S3.CreateBucket = true
		}
		return nil
	}
}
