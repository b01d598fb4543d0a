package utils

// ResponseData is the JSON envelope returned by every operational endpoint.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded hands err to the Recovery middleware, which renders it as a ResponseData.
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}
