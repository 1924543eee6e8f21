// Package server implements the local HTTP surface for the OAuth2
// authorization flow.
//
// A short-lived server hosts the redirect callback during `spm auth login`;
// the handler validates state, exchanges the code, and hands the token back
// over a channel.
package server
