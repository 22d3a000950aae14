package iam

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imamik/certzner/internal/util/labels"
)

// Store kinds a publish policy can be scoped to.
const (
	StoreIAM = "iam"
	StoreS3  = "s3"
)

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
	Condition map[string]any    `json:"Condition,omitempty"`
}

// TrustPolicy allows principals of accountID to assume the role.
func TrustPolicy(accountID string) (string, error) {
	return render(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"AWS": fmt.Sprintf("arn:aws:iam::%s:root", accountID)},
		}},
	})
}

// PublishPolicy grants only what publishing into the given store needs.
// Resources are scoped to the base path, since published entries outlive
// the run, and every grant holds only for a principal tagged with runTag.
func PublishPolicy(store, basePath, bucket, accountID, runTag string) (string, error) {
	if runTag == "" {
		return "", fmt.Errorf("publish policy requires a run tag")
	}
	runScope := map[string]string{"aws:PrincipalTag/" + labels.KeyRun: runTag}

	var stmts []statement
	switch store {
	case StoreIAM:
		stmts = []statement{{
			Effect: "Allow",
			Action: []string{
				"iam:UploadServerCertificate",
				"iam:DeleteServerCertificate",
				"iam:GetServerCertificate",
				"iam:TagServerCertificate",
			},
			Resource:  []string{fmt.Sprintf("arn:aws:iam::%s:server-certificate%s*", accountID, NormalizePath(basePath))},
			Condition: map[string]any{"StringEquals": runScope},
		}}
	case StoreS3:
		if bucket == "" {
			return "", fmt.Errorf("s3 publish policy requires a bucket")
		}
		prefix := strings.Trim(basePath, "/")
		objects := fmt.Sprintf("arn:aws:s3:::%s/*", bucket)
		listPrefix := "*"
		if prefix != "" {
			objects = fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, prefix)
			listPrefix = prefix + "/*"
		}
		stmts = []statement{
			{
				Effect:    "Allow",
				Action:    []string{"s3:PutObject", "s3:GetObject", "s3:DeleteObject"},
				Resource:  []string{objects},
				Condition: map[string]any{"StringEquals": runScope},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{fmt.Sprintf("arn:aws:s3:::%s", bucket)},
				Condition: map[string]any{
					"StringEquals": runScope,
					"StringLike":   map[string]string{"s3:prefix": listPrefix},
				},
			},
		}
	default:
		return "", fmt.Errorf("no publish policy for store %q", store)
	}

	return render(policyDocument{Version: "2012-10-17", Statement: stmts})
}

func render(doc policyDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render policy: %w", err)
	}
	return string(data), nil
}
