// Package config handles configuration loading for food-gateway.
//
// # Overview
//
// Configuration is loaded from an optional YAML file with environment
// variable expansion. Every field has a default, so the gateway runs with no
// file at all using the in-process policy service and a local SQLite file.
//
// # Configuration File
//
// Location (first match):
//
//  1. Path from FOOD_CONFIG environment variable
//  2. ~/.config/food-ordering/gateway.yaml
//
// A .env file in the working directory is loaded into the environment first.
//
// # Environment Variables
//
// Values can reference the environment:
//
//	database:
//	  dsn: "${FOOD_DATABASE_DSN}"
//
// These variables override file values when set:
//
//	PERMIT_API_KEY                policy.api_key
//	PROJECT_ID                    policy.project_id
//	ENV_ID                        policy.env_id
//	ELEMENTS_CONFIG_ID            policy.access_request_config_id
//	OPERATION_APPROVAL_CONFIG_ID  policy.operation_approval_config_id
//	PERMIT_PDP_URL                policy.pdp_url
//	PERMIT_API_URL                policy.api_url
//	FOOD_DB_PATH                  database.path
//	FOOD_JWT_SECRET               auth.jwt_secret
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  shutdown_timeout: "10s"
//
//	database:
//	  driver: "sqlite"        # sqlite, postgres
//	  path: "food.db"         # sqlite only; ":memory:" for throwaway runs
//	  dsn: ""                 # postgres only
//
//	policy:
//	  mode: ""                # local, permit; empty picks permit when an API key is set
//	  tenant: "default"
//	  sync_on_start: false
//	  timeout: "10s"          # per attempt
//	  retry_attempts: 1       # 1 disables retries
//	  rate_limit: 50          # requests per second
//	  burst: 10
//	  breaker_max_failures: 5
//	  breaker_timeout: "30s"
//
//	ordering:
//	  child_price_threshold: 10.00
//
//	auth:
//	  jwt_secret: "${FOOD_JWT_SECRET}"
//	  require_auth: false
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load validates driver and mode values, the identifiers permit mode needs,
// the JWT secret length (32 bytes), duration syntax and the threshold.
package config
