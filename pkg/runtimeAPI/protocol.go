package runtimeAPI

// Version of the runtime API spoken by this client.
const Version = "2018-06-01"

// BasePath is the path prefix shared by every control-plane operation.
const BasePath = "/" + Version + "/runtime"

// Response headers sent by the control plane on a next invocation call.
const (
	HeaderRequestID          = "Lambda-Runtime-Aws-Request-Id"
	HeaderDeadlineMs         = "Lambda-Runtime-Deadline-Ms"
	HeaderInvokedFunctionArn = "Lambda-Runtime-Invoked-Function-Arn"
	HeaderTraceID            = "Lambda-Runtime-Trace-Id"
	HeaderClientContext      = "Lambda-Runtime-Client-Context"
	HeaderCognitoIdentity    = "Lambda-Runtime-Cognito-Identity"
)

// PostInvocationErrorType is the errorType reported for every error body.
const PostInvocationErrorType = "PostInvocationError"

// InvocationError is the JSON body posted to the error endpoints.
type InvocationError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// NewInvocationError wraps err into the error body sent to the control plane.
func NewInvocationError(err error) InvocationError {
	return InvocationError{
		ErrorMessage: err.Error(),
		ErrorType:    PostInvocationErrorType,
	}
}
