// Package emoji copies custom emojis from other servers into a guild.
package emoji

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"warden/internal/utils"
)

const (
	DefaultCDN = "https://cdn.discordapp.com/emojis/"
	// MaxSize is the upload limit Discord puts on emoji images.
	MaxSize = 256 * 1024
)

var (
	customEmojiRegex = regexp.MustCompile(`^<(a?):(\w{2,32}):(\d{15,21})>$`)
	idRegex          = regexp.MustCompile(`^\d{15,21}$`)
	nameRegex        = regexp.MustCompile(`^\w{2,32}$`)

	ErrNotCustom     = errors.New("not a custom emoji")
	errImageNotFound = errors.New("emoji image not found")
)

type Session interface {
	GuildEmojis(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Emoji, error)
	GuildEmojiCreate(guildID string, data *discordgo.EmojiParams, options ...discordgo.RequestOption) (*discordgo.Emoji, error)
}

type Reporter interface {
	Success(text string)
	Error(text string)
	Normal(text string)
}

// Ref points at a custom emoji. Name is empty when the input was a bare id or a URL.
type Ref struct {
	ID       string
	Name     string
	Animated bool
}

// Parse accepts a custom emoji mention, a bare emoji id or a CDN link.
func Parse(input string) (Ref, error) {
	input = strings.TrimSpace(input)
	if match := customEmojiRegex.FindStringSubmatch(input); match != nil {
		return Ref{ID: match[3], Name: match[2], Animated: match[1] == "a"}, nil
	}
	if idRegex.MatchString(input) {
		return Ref{ID: input}, nil
	}
	if id, ok := utils.EmojiIDFromURL(input); ok {
		name := strings.ToLower(utils.FileNameFromURL(input))
		return Ref{ID: id, Animated: strings.HasSuffix(name, ".gif")}, nil
	}
	return Ref{}, ErrNotCustom
}

type Stealer struct {
	session Session
	client  *http.Client
	cdn     string
	logger  *zap.Logger
}

func NewStealer(session Session, logger *zap.Logger) *Stealer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stealer{
		session: session,
		client:  &http.Client{Timeout: 15 * time.Second},
		cdn:     DefaultCDN,
		logger:  logger,
	}
}

// WithCDN points downloads at another emoji host.
func (s *Stealer) WithCDN(base string) *Stealer {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	s.cdn = base
	return s
}

// Steal downloads the emoji behind input and adds it to the guild as name.
// A blank name keeps the emoji's own name.
func (s *Stealer) Steal(ctx context.Context, rep Reporter, guildID, name, input string) error {
	if guildID == "" {
		rep.Error("Server not found, make sure you aren't running this from a DM!")
		return nil
	}
	ref, err := Parse(input)
	if err != nil {
		rep.Error("Emoji must be a custom emoji, an emoji ID or an emoji URL!")
		return nil
	}
	if name == "" {
		name = ref.Name
	}
	if name == "" {
		rep.Error("An emoji name is required when stealing by ID or URL!")
		return nil
	}
	if !nameRegex.MatchString(name) {
		rep.Error("Emoji names must be 2 to 32 letters, numbers or underscores!")
		return nil
	}

	existing, err := s.session.GuildEmojis(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list emojis: %w", err)
	}
	for _, emoji := range existing {
		if emoji != nil && emoji.Name == name {
			rep.Error(fmt.Sprintf("There is already an emoji with the name `%s`!", name))
			return nil
		}
	}

	data, err := s.download(ctx, ref)
	if errors.Is(err, errImageNotFound) {
		rep.Error(fmt.Sprintf("Couldn't find an emoji with the ID `%s`!", ref.ID))
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) > MaxSize {
		rep.Error("That emoji is larger than 256 KB, Discord won't accept it!")
		return nil
	}
	uri, err := DataURI(data)
	if err != nil {
		rep.Error("That emoji isn't a valid image!")
		return nil
	}

	created, err := s.session.GuildEmojiCreate(guildID, &discordgo.EmojiParams{Name: name, Image: uri}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create emoji: %w", err)
	}
	s.logger.Info("emoji stolen", zap.String("guild_id", guildID), zap.String("emoji_id", created.ID), zap.String("source_id", ref.ID))
	rep.Success(fmt.Sprintf("Successfully stolen emoji `%s`!", created.Name))
	return nil
}

// download tries the animated image first unless the emoji is known to be static.
func (s *Stealer) download(ctx context.Context, ref Ref) ([]byte, error) {
	extensions := []string{"gif", "png"}
	if ref.Name != "" && !ref.Animated {
		extensions = []string{"png"}
	}
	var lastErr error
	for _, ext := range extensions {
		data, err := s.fetch(ctx, s.cdn+ref.ID+"."+ext)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !errors.Is(err, errImageNotFound) {
			break
		}
	}
	return nil, lastErr
}

func (s *Stealer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download emoji: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnsupportedMediaType:
		return nil, errImageNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download emoji: unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
}

// DataURI validates data as an image and encodes it for the emoji API.
func DataURI(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
