// Package common holds the small set of names and helpers shared by the
// diarysync client and server.
package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"
