package config

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "AGORA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside envconfig tags (tests, error
// messages).
const (
	EnvAppEnv   = "AGORA_APP_ENV"
	EnvPort     = "AGORA_APP_PORT"
	EnvDBDSN    = "AGORA_DB_DSN"
	EnvDBHost   = "AGORA_DB_HOST"
	EnvDBUser   = "AGORA_DB_USER"
	EnvDBName   = "AGORA_DB_NAME"
	EnvRedisURL = "AGORA_REDIS_URL"

	EnvGCPProjectID       = "AGORA_GCP_PROJECT_ID"
	EnvPubSubTenderTopic  = "AGORA_PUBSUB_TENDER_TOPIC"
	EnvPubSubWalletTopic  = "AGORA_PUBSUB_WALLET_TOPIC"
	EnvPubSubTenderSub    = "AGORA_PUBSUB_TENDER_SUBSCRIPTION"
	EnvPubSubWalletSub    = "AGORA_PUBSUB_WALLET_SUBSCRIPTION"
	EnvIdentityBaseURL    = "AGORA_IDENTITY_BASE_URL"
	EnvCustodialBaseURL   = "AGORA_CUSTODIAL_BASE_URL"
	EnvCustodialAPIKey    = "AGORA_CUSTODIAL_API_KEY"
	EnvSquareAccessToken  = "AGORA_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID   = "AGORA_SQUARE_LOCATION_ID"
	EnvBuyerFeeBps        = "AGORA_FEES_BUYER_BPS"
	EnvSellerFeeBps       = "AGORA_FEES_SELLER_BPS"
	EnvEscrowWalletAgent  = "AGORA_PLATFORM_ESCROW_AGENT"
	EnvRevenueWalletAgent = "AGORA_PLATFORM_REVENUE_AGENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
