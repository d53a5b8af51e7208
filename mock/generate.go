// Package mock provides moq generated mocks of the cogito interfaces.
package mock

//go:generate go tool moq -out cogito_mock.go -pkg mock -rm .. Decider Action ActionSet ProgressSink
//go:generate go tool moq -out llm_mock.go -pkg mock -rm ../llm Streamer
