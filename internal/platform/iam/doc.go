// Package iam manages the AWS identity used to publish certificates.
//
// It creates the short-lived publisher role and its inline policy, uploads
// and removes IAM server certificates, and assumes the publisher role so
// AWS-backed trust stores are written with least-privilege credentials.
package iam
