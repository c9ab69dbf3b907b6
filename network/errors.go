package network

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrConnectionFailed indicates the client could not reach the gateway.
	ErrConnectionFailed = fault.New(fault.KindPublish, "GatewayUnavailable", "network: connection failed")

	// ErrAuthFailed indicates the gateway rejected the API token.
	ErrAuthFailed = fault.New(fault.KindPublish, "GatewayAuthFailed", "network: authentication failed")

	// ErrInsufficientFunds indicates the paying wallet cannot cover the upload.
	ErrInsufficientFunds = fault.New(fault.KindPublish, "InsufficientFunds", "network: insufficient funds")

	// ErrPublishRejected indicates the gateway refused the data item.
	ErrPublishRejected = fault.New(fault.KindPublish, "PublishRejected", "network: publish rejected")

	// ErrInvalidResponse indicates the gateway returned a malformed or unexpected response.
	ErrInvalidResponse = fault.New(fault.KindPublish, "InvalidGatewayResponse", "network: invalid response")

	// ErrNoGateway indicates no gateway URL was configured.
	ErrNoGateway = fault.New(fault.KindValidation, "InvalidConfig", "network: gateway URL not configured")

	// ErrEmptyData indicates an attempt to publish zero bytes.
	ErrEmptyData = fault.New(fault.KindValidation, "EmptyFile", "network: data is empty")
)
