// Package s3drive exposes an S3/MinIO bucket as a drive. Key prefixes ending
// in "/" are folders; the bucket itself is the only drive.
package s3drive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// Config holds bucket connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// API is the subset of the S3 client the drive uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Level cache bounds. A listing is reused while a caller pages through it.
const (
	levelCacheSize = 256
	levelTTL       = 30 * time.Second
)

type level struct {
	folders []models.Item
	files   []models.Item
}

// Drive implements drive.Directory and drive.Fetcher over one bucket.
// Each prefix is listed once and then paged from memory.
type Drive struct {
	api    API
	bucket string
	levels *expirable.LRU[string, level]
}

// New connects to the bucket described by cfg.
func New(ctx context.Context, cfg Config) (*Drive, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	logging.Info("s3 drive configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
	)
	return NewWithAPI(client, cfg.Bucket), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket string) *Drive {
	return &Drive{
		api:    api,
		bucket: bucket,
		levels: expirable.NewLRU[string, level](levelCacheSize, nil, levelTTL),
	}
}

// ListDrives returns the bucket as the single drive.
func (d *Drive) ListDrives(ctx context.Context) ([]models.Drive, error) {
	if d.bucket == "" {
		return nil, nil
	}
	return []models.Drive{{ID: d.bucket, Name: d.bucket}}, nil
}

// ListFolders returns one page of the immediate sub-prefixes of parentID.
func (d *Drive) ListFolders(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	lv, err := d.level(ctx, prefixOf(parentID))
	if err != nil {
		return nil, err
	}
	return pageOf(lv.folders, page, size), nil
}

// ListFiles returns one page of the objects directly under parentID.
func (d *Drive) ListFiles(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	lv, err := d.level(ctx, prefixOf(parentID))
	if err != nil {
		return nil, err
	}
	return pageOf(lv.files, page, size), nil
}

// SearchInRoot matches query case-insensitively against object base names
// across the whole bucket.
func (d *Drive) SearchInRoot(ctx context.Context, driveID, query string, page, size int) ([]models.Item, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	var hits []models.Item
	err := d.walk(ctx, "", "", "search", func(out *s3.ListObjectsV2Output) {
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			name := path.Base(key)
			if needle == "" || strings.Contains(strings.ToLower(name), needle) {
				hits = append(hits, models.Item{ID: key, Name: name, Type: models.TypeFile})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return pageOf(hits, page, size), nil
}

// Download streams an object.
func (d *Drive) Download(ctx context.Context, driveID, fileID string) (io.ReadCloser, int64, error) {
	start := time.Now()
	out, err := d.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(fileID),
	})
	metrics.RecordDriveRequest("s3_get_object", statusOf(err), time.Since(start))
	if err != nil {
		return nil, 0, &drive.TransportError{Op: "download", Err: fmt.Errorf("get object %s: %w", fileID, err)}
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// level returns the folders and files directly under prefix, reusing a
// listing made within levelTTL.
func (d *Drive) level(ctx context.Context, prefix string) (level, error) {
	if lv, ok := d.levels.Get(prefix); ok {
		return lv, nil
	}
	lv, err := d.listLevel(ctx, prefix)
	if err != nil {
		return level{}, err
	}
	d.levels.Add(prefix, lv)
	return lv, nil
}

func (d *Drive) listLevel(ctx context.Context, prefix string) (level, error) {
	var lv level
	err := d.walk(ctx, prefix, "/", "list", func(out *s3.ListObjectsV2Output) {
		for _, cp := range out.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			lv.folders = append(lv.folders, models.Item{
				ID:   p,
				Name: path.Base(strings.TrimSuffix(p, "/")),
				Type: models.TypeFolder,
			})
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			// Zero-byte folder markers.
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			lv.files = append(lv.files, models.Item{ID: key, Name: path.Base(key), Type: models.TypeFile})
		}
	})
	return lv, err
}

func (d *Drive) walk(ctx context.Context, prefix, delimiter, op string, fn func(*s3.ListObjectsV2Output)) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	p := s3.NewListObjectsV2Paginator(d.api, input)
	for p.HasMorePages() {
		start := time.Now()
		out, err := p.NextPage(ctx)
		metrics.RecordDriveRequest("s3_"+op, statusOf(err), time.Since(start))
		if err != nil {
			return &drive.TransportError{Op: op, Err: fmt.Errorf("list %q: %w", prefix, err)}
		}
		fn(out)
	}
	return nil
}

func prefixOf(parentID string) string {
	if parentID == drive.RootID || parentID == "" {
		return ""
	}
	if !strings.HasSuffix(parentID, "/") {
		return parentID + "/"
	}
	return parentID
}

func pageOf(items []models.Item, page, size int) []models.Item {
	size = drive.ClampPageSize(size)
	start := page * size
	if page < 0 || start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}

func statusOf(err error) int {
	if err != nil {
		return 0
	}
	return 200
}

var (
	_ drive.Directory = (*Drive)(nil)
	_ drive.Fetcher   = (*Drive)(nil)
)
