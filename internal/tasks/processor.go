package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fluxgallery/internal/config"
	"fluxgallery/internal/events"
	"fluxgallery/internal/ids"
	"fluxgallery/internal/imagegen"
	"fluxgallery/internal/media/sniffer"
	"fluxgallery/internal/models"
	"fluxgallery/internal/repository"
	"fluxgallery/internal/storage"
)

// Generator is the image backend surface the processor needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (imagegen.GeneratedImage, error)
	Model() string
}

// Processor executes generation jobs: call the image backend, make sure the
// result lives at a servable URL, record it in the gallery and broadcast the
// update so open galleries refresh.
type Processor struct {
	images    *repository.ImageRepository
	generator Generator
	store     *storage.ObjectStore
	publisher events.Publisher
	cfg       config.ImageGenConfig
	imageTTL  config.GalleryConfig
	logger    zerolog.Logger
}

func NewProcessor(
	images *repository.ImageRepository,
	generator Generator,
	store *storage.ObjectStore,
	publisher events.Publisher,
	cfg config.ImageGenConfig,
	gallery config.GalleryConfig,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		images:    images,
		generator: generator,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		imageTTL:  gallery,
		logger:    logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var job models.GenerationJob
	if err := decodePayload(msg.Values, &job); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if job.UserID == "" || job.Prompt == "" {
		p.logger.Warn().Str("message_id", msg.ID).Msg("generation job missing user or prompt, dropping")
		return nil
	}

	result, err := p.generator.Generate(ctx, job.Prompt)
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}

	imageID := ids.New()
	imageURL, err := p.resolveURL(ctx, imageID, result)
	if err != nil {
		return fmt.Errorf("resolve image url: %w", err)
	}

	image := models.GalleryImage{
		ID:       imageID,
		UserID:   job.UserID,
		ImageURL: imageURL,
		Prompt:   job.Prompt,
		Style:    job.Style,
		Model:    p.generator.Model(),
	}
	if ttl := p.imageTTL.ImageTTL; ttl > 0 {
		expireAt := time.Now().Add(ttl)
		image.ExpireAt = &expireAt
	}

	if err := p.images.Insert(ctx, image); err != nil {
		return fmt.Errorf("save gallery image: %w", err)
	}

	if err := p.publisher.Publish(ctx, events.GalleryUpdate{UserID: job.UserID}); err != nil {
		p.logger.Warn().Err(err).Str("user_id", job.UserID).Msg("gallery update publish failed")
	}

	p.logger.Info().
		Str("job_id", job.JobID).
		Str("image_id", imageID).
		Str("user_id", job.UserID).
		Msg("generation job completed")
	return nil
}

// resolveURL returns a URL on an allow-listed host. Inline payloads and
// images hosted anywhere else are re-hosted on our own object store.
func (p *Processor) resolveURL(ctx context.Context, imageID string, result imagegen.GeneratedImage) (string, error) {
	if result.Data == nil && imagegen.HostAllowed(result.URL, p.cfg.AllowedHosts) {
		return result.URL, nil
	}

	data := result.Data
	if data == nil {
		return "", fmt.Errorf("host %q not allowed and no inline payload", result.URL)
	}

	detected, err := sniffer.DetectHead(head(data))
	if err != nil {
		return "", fmt.Errorf("detect image type: %w", err)
	}

	return p.store.PutImage(ctx, imageID, string(detected.Type), detected.MIME, data)
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

func decodePayload(values map[string]interface{}, out *models.GenerationJob) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}
