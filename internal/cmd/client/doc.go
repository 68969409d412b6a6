// Package client provides the `ensdb` command-line client.
//
// The CLI talks to the ensdb gRPC endpoint to append, inspect and match
// records from a terminal. The address is read from the ENS_GRPC
// environment variable (default 127.0.0.1:50051).
//
// Usage
//
//	ensdb records add --timestamp 1700000000 --rssi -61 --id 00112233445566778899aabbccddeeff
//	ensdb records list --from 1700000000 --filter 'rssi > -70' --limit 20
//	ensdb records search 1700000100 --mode max
//	ensdb records export --from 1700000000 -o contacts.jsonl.zst
//	ensdb records import contacts.jsonl.zst
//	ensdb match --id 00112233445566778899aabbccddeeff --start 1700000000
//	ensdb stats
//	ensdb health --service ensdb.v1.Records
package client
