// Package textract recognizes text with the AWS Textract service.
package textract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// API is the subset of the Textract client used here.
type API interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Config holds the service credentials and filtering.
type Config struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

// Recognizer implements ocr.Recognizer over DetectDocumentText. Language and
// page segmentation have no meaning for the service and are ignored.
type Recognizer struct {
	client API
	logger logger.Logger
	config Config
}

// NewRecognizer builds a client from static credentials.
func NewRecognizer(ctx context.Context, cfg Config, log logger.Logger) (*Recognizer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewRecognizerWithClient(client, cfg, log), nil
}

// NewRecognizerWithClient wraps an existing client.
func NewRecognizerWithClient(client API, cfg Config, log logger.Logger) *Recognizer {
	return &Recognizer{client: client, logger: log, config: cfg}
}

// Recognize implements ocr.Recognizer.
func (p *Recognizer) Recognize(ctx context.Context, r *raster.Raster, cfg ocr.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	img, err := raster.Encode(r, raster.FormatPNG)
	if err != nil {
		return "", fmt.Errorf("failed to encode raster for recognition: %w", err)
	}

	out, err := p.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: img},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("Textract rejected document",
				logger.String("code", apiErr.ErrorCode()),
				logger.String("message", apiErr.ErrorMessage()))
			return "", fmt.Errorf("%w: %s: %s", ocr.ErrRecognitionFailed, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ocr.ErrRecognitionFailed, ctxErr)
		}
		return "", fmt.Errorf("%w: %v", ocr.ErrEngineUnavailable, err)
	}

	return strings.Join(p.lines(out.Blocks), "\n"), nil
}

// lines returns LINE blocks at or above the confidence floor, in service order.
func (p *Recognizer) lines(blocks []types.Block) []string {
	var texts []string
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < p.config.MinConfidence {
			continue
		}
		texts = append(texts, *block.Text)
	}
	return texts
}
