package error

// GenericError is implemented by every typed error the REST layer knows how to render.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
