package constants

// Centralized constants for headers, env keys, routes and log fields.
const (
	// Environment variable keys
	EnvAddr           = "BATTLE_ADDR"
	EnvConfigPath     = "BATTLE_CONFIG"
	EnvDBPath         = "BATTLE_DB"
	EnvSessionSecret  = "SESSION_SECRET"
	EnvAdminKey       = "ADMIN_KEY"
	EnvLogLevel       = "LOG_LEVEL"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
	EnvGinMode        = "GIN_MODE"
	EnvSweepInterval  = "SWEEP_INTERVAL"

	DefaultConfigPath = "./battle_config.json"
	DefaultDBPath     = "file::memory:?cache=shared"
	DefaultAddr       = ":8080"

	// HTTP headers and content types
	HeaderAuthorization = "Authorization"
	HeaderAdminKey      = "X-Admin-Key"
	HeaderContentType   = "Content-Type"

	ContentTypeJSON = "application/json"

	// Authorization prefix
	BearerPrefix = "Bearer "

	QueryToken  = "token"
	QueryLegacy = "legacy"
)

// Routes used by the backend router
const (
	RouteAPIPrefix     = "/api"
	RouteVersion       = "/version"
	RouteBattles       = "/battles"
	RouteBattleByID    = "/battles/:battleID"
	RouteCharacters    = "/battles/:battleID/characters"
	RouteJoin          = "/battles/:battleID/join"
	RouteLeave         = "/battles/:battleID/leave"
	RouteStart         = "/battles/:battleID/start"
	RoutePause         = "/battles/:battleID/pause"
	RouteResume        = "/battles/:battleID/resume"
	RouteChat          = "/battles/:battleID/chat"
	RouteAction        = "/battles/:battleID/action"
	RouteLinks         = "/battles/:battleID/links"
	RouteOTP           = "/battles/:battleID/otp"
	RouteLogin         = "/battles/:battleID/login"
	RouteEnd           = "/battles/:battleID/end"
	RouteWSBattle      = "/ws/battles/:battleID"
	ParamBattleID      = "battleID"
	RouteVersionHealth = RouteAPIPrefix + RouteVersion
)

// Common JSON response keys
const (
	JSONKeyError   = "error"
	JSONKeyMessage = "message"
	JSONKeyOK      = "ok"
	JSONKeyResult  = "result"
	JSONKeyToken   = "token"
	JSONKeyRole    = "role"
	JSONKeyCode    = "code"
	JSONKeyWinner  = "winner"
)

// Gin context keys set by the auth middleware
const (
	CtxRole     = "role"
	CtxName     = "name"
	CtxPlayerID = "playerID"
	CtxBattleID = "battleID"
)

// Common error messages used across API handlers
const (
	ErrInvalidRequest     = "Invalid request"
	ErrBattleNotFound     = "Battle not found"
	ErrAuthRequired       = "Authentication required"
	ErrInvalidSession     = "Invalid session"
	ErrForbidden          = "Forbidden"
	ErrFailedCreateBattle = "Failed to create battle"
	ErrFailedEncodeBattle = "Failed to encode battle"
	ErrInternal           = "Internal error"
	ErrUnknownCommand     = "Unknown command"
)

// Logging field names
const (
	LogFieldBattleID   = "battle_id"
	LogFieldPlayerID   = "player_id"
	LogFieldRole       = "role"
	LogFieldEvent      = "event"
	LogFieldSubscriber = "subscriber"
	LogFieldError      = "error"
	LogFieldReason     = "reason"
	LogFieldTeam       = "team"
	LogFieldWinner     = "winner"
	LogFieldCount      = "count"
	LogFieldName       = "name"
	LogFieldKey        = "key"
	LogFieldAddr       = "addr"
	LogFieldPath       = "config_path"
)
