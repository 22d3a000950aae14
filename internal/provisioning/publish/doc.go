// Package publish writes issued certificates to the configured trust store.
//
// Publication is an upsert by delete-then-create: the prior entry under the
// domain's store name is removed (errors ignored) and a new one is created.
// Stores:
//
//   - hcloud: Hetzner Cloud uploaded certificates, base path kept as a label
//   - iam: AWS IAM server certificates, base path as the IAM path
//   - s3: PEM objects under <path>/<name>/ in a bucket
package publish
