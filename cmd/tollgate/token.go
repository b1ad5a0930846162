// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"encoding/json"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/token"
	"github.com/tollgate/tollgate/internal/config"
)

// Signature states reported by token inspect.
const (
	signatureValid     = "valid"
	signatureInvalid   = "invalid"
	signatureUnchecked = "unchecked"
)

// inspection is the output of token inspect.
type inspection struct {
	auth.TokenInfo `yaml:",inline"`
	Signature      string `json:"signature" yaml:"signature"`
}

// NewTokenCmd creates the token subcommand.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token support tooling",
	}

	inspect := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Print the claims of a token without trusting it",
		Long: `Decode a token and print its claims. The signature is checked only when
TOLLGATE_TOKEN_SECRET is set; the output never establishes identity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}
			result, err := inspectToken(args[0], []byte(cfg.Secrets.TokenSecret))
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), format, result)
		},
	}
	inspect.Flags().StringP("output", "o", "json", "output format (json, yaml)")
	cmd.AddCommand(inspect)

	return cmd
}

// inspectToken decodes signed and, when secret is usable, checks its signature.
func inspectToken(signed string, secret []byte) (*inspection, error) {
	info, err := auth.InspectToken(token.NewInspector(), signed)
	if err != nil {
		return nil, err
	}
	result := &inspection{TokenInfo: *info, Signature: signatureUnchecked}

	if len(secret) == 0 {
		return result, nil
	}
	codec, err := token.NewCodec(secret)
	if err != nil {
		return nil, err
	}
	_, err = codec.Decode(signed, info.Type)
	switch auth.ErrorCode(err) {
	case "", token.CodeExpired, token.CodeWrongType:
		result.Signature = signatureValid
	default:
		result.Signature = signatureInvalid
	}
	return result, nil
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		if err := enc.Close(); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	default:
		return oops.Code("INVALID_OUTPUT").With("output", format).Errorf("unknown output format %q", format)
	}
}
