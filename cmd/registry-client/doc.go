// Package main (cmd/registry-client) is a command line client for the
// registry HTTP API.
//
// Example usage:
//
//	registry-client --caller 0x421F64C3f22AeE7BE98a019d7F1D5D23f346c10a register -f entity.yaml
//	registry-client by-user 0xFFfCd0B404c3d8AE38Ea2966bAD5A75D5Ab6ce0F
//	registry-client status --status Deregistered 0xCafac3dD18aC6c6e92c921884f9E4176737C052c
//	registry-client logic
package main
