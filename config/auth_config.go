package config

// Authentication mechanism names sent in connection.start-ok
const (
	// AuthPlain sends user and password as a SASL PLAIN response
	AuthPlain = "PLAIN"
	// AuthAMQPlain sends user and password as a field table
	AuthAMQPlain = "AMQPLAIN"
	// AuthExternal relies on credentials from outside the protocol, such as a TLS client certificate
	AuthExternal = "EXTERNAL"
)
