package services

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/yukikurage/taskboard/internal/constants"
	"go.uber.org/zap"
)

// makeThumbnail fits an image into a ThumbnailSize square, keeping the
// aspect ratio and the source format. Smaller images are not enlarged.
// Content that cannot be decoded, or is too large to decode safely, gets no
// thumbnail and a nil result. content is rewound before returning.
func makeThumbnail(content io.ReadSeeker) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(content)
	if err := rewind(content); err != nil {
		return nil, err
	}
	if err != nil {
		zap.L().Debug("Skipping thumbnail", zap.Error(err))
		return nil, nil
	}
	if cfg.Width*cfg.Height > constants.MaxThumbnailSourcePixels {
		zap.L().Debug("Skipping thumbnail of oversized image",
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height),
		)
		return nil, nil
	}

	outFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, nil
	}

	img, err := imaging.Decode(content, imaging.AutoOrientation(true))
	if err := rewind(content); err != nil {
		return nil, err
	}
	if err != nil {
		zap.L().Debug("Skipping thumbnail", zap.Error(err))
		return nil, nil
	}

	thumb := imaging.Fit(img, constants.ThumbnailSize, constants.ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, outFormat); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func rewind(content io.Seeker) error {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind attachment: %w", err)
	}
	return nil
}
