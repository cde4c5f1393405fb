package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var errEmptyParameter = errors.New("parameter has no value")

// GetParameterStoreValue reads a single SSM parameter.
func GetParameterStoreValue(ctx context.Context, parameterName string, decrypt bool) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(awsCfg)

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", parameterName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", errEmptyParameter
	}

	return *result.Parameter.Value, nil
}

// ResolveSecrets fills secrets that are kept in Parameter Store in prod.
// Outside prod it is a no-op.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	if c.Environment != "prod" || c.Oanda.APIKeyParam == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key, err := GetParameterStoreValue(ctx, c.Oanda.APIKeyParam, true)
	if err != nil {
		return fmt.Errorf("resolve oanda api key: %w", err)
	}
	c.Oanda.APIKey = key
	return nil
}
