package model

// Envelope is the single response shape used by every endpoint. Success
// payloads live under Data; error responses carry Error and Code.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(code, message string) Envelope {
	return Envelope{Success: false, Error: message, Code: code}
}

func FailWith(code, message string, data any) Envelope {
	return Envelope{Success: false, Error: message, Code: code, Data: data}
}
