package error

import "net/http"

// Errors raised along the webhook and reminder pipelines. The webhook path
// never surfaces them to the provider; they exist for logging and for the
// operational API.

// AuthError: webhook token did not match the tenant.
type AuthError string

func (err AuthError) Error() string   { return string(err) }
func (err AuthError) ErrCode() string { return "AUTH_ERROR" }
func (err AuthError) StatusCode() int { return http.StatusUnauthorized }

// ConfigError: tenant lacks bot config, instance or an active billing state.
type ConfigError string

func (err ConfigError) Error() string   { return string(err) }
func (err ConfigError) ErrCode() string { return "CONFIG_ERROR" }
func (err ConfigError) StatusCode() int { return http.StatusUnprocessableEntity }

// ParseError: payload shape was not recognized.
type ParseError string

func (err ParseError) Error() string   { return string(err) }
func (err ParseError) ErrCode() string { return "PARSE_ERROR" }
func (err ParseError) StatusCode() int { return http.StatusBadRequest }

// EngineError: conversational engine unreachable or returned garbage.
type EngineError string

func (err EngineError) Error() string   { return string(err) }
func (err EngineError) ErrCode() string { return "ENGINE_ERROR" }
func (err EngineError) StatusCode() int { return http.StatusBadGateway }

// SendError: outbound provider call failed.
type SendError string

func (err SendError) Error() string   { return string(err) }
func (err SendError) ErrCode() string { return "SEND_ERROR" }
func (err SendError) StatusCode() int { return http.StatusBadGateway }

type PersistenceError string

func (err PersistenceError) Error() string   { return string(err) }
func (err PersistenceError) ErrCode() string { return "PERSISTENCE_ERROR" }
func (err PersistenceError) StatusCode() int { return http.StatusInternalServerError }
