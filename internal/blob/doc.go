// Package blob stores material images outside the database.
//
// The mobile client uploads images as base64 strings. When image offload is
// enabled the server decodes them with DecodeImage, writes the bytes to an
// S3-compatible bucket under a key from NewKey, and lists materials with a
// presigned GET URL instead of the inline payload. MemoryStore implements the
// same ImageStore interface for tests.
package blob
