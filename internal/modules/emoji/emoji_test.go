package emoji

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emojiID = "123456789012345678"

type fakeSession struct {
	emojis  []*discordgo.Emoji
	created []*discordgo.EmojiParams
}

func (f *fakeSession) GuildEmojis(string, ...discordgo.RequestOption) ([]*discordgo.Emoji, error) {
	return f.emojis, nil
}

func (f *fakeSession) GuildEmojiCreate(_ string, data *discordgo.EmojiParams, _ ...discordgo.RequestOption) (*discordgo.Emoji, error) {
	f.created = append(f.created, data)
	return &discordgo.Emoji{ID: "1", Name: data.Name}, nil
}

type recorder struct {
	entries []string
}

func (r *recorder) Success(text string) { r.entries = append(r.entries, "success: "+text) }
func (r *recorder) Error(text string)   { r.entries = append(r.entries, "error: "+text) }
func (r *recorder) Normal(text string)  { r.entries = append(r.entries, "normal: "+text) }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

// newCDN serves files by name and records the requested paths.
func newCDN(t *testing.T, files map[string][]byte) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/emojis/")
		requested = append(requested, name)
		data, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server, &requested
}

func TestParse(t *testing.T) {
	ref, err := Parse("<a:party:" + emojiID + ">")
	require.NoError(t, err)
	assert.Equal(t, Ref{ID: emojiID, Name: "party", Animated: true}, ref)

	ref, err = Parse(" " + emojiID + " ")
	require.NoError(t, err)
	assert.Equal(t, Ref{ID: emojiID}, ref)

	ref, err = Parse("https://cdn.discordapp.com/emojis/" + emojiID + ".gif?size=48")
	require.NoError(t, err)
	assert.Equal(t, Ref{ID: emojiID, Animated: true}, ref)

	_, err = Parse("😀")
	assert.ErrorIs(t, err, ErrNotCustom)
}

func TestStealStaticEmoji(t *testing.T) {
	server, requested := newCDN(t, map[string][]byte{emojiID + ".png": pngBytes(t)})
	session := &fakeSession{}
	rep := &recorder{}

	err := NewStealer(session, nil).WithCDN(server.URL+"/emojis").Steal(context.Background(), rep, "g", "", "<:blob:"+emojiID+">")
	require.NoError(t, err)

	assert.Equal(t, []string{"success: Successfully stolen emoji `blob`!"}, rep.entries)
	require.Len(t, session.created, 1)
	assert.Equal(t, "blob", session.created[0].Name)
	assert.True(t, strings.HasPrefix(session.created[0].Image, "data:image/png;base64,"))
	assert.Equal(t, []string{emojiID + ".png"}, *requested)
}

func TestStealByIDFallsBackToPNG(t *testing.T) {
	server, requested := newCDN(t, map[string][]byte{emojiID + ".png": pngBytes(t)})
	session := &fakeSession{}
	rep := &recorder{}

	err := NewStealer(session, nil).WithCDN(server.URL+"/emojis/").Steal(context.Background(), rep, "g", "copied", emojiID)
	require.NoError(t, err)
	assert.Equal(t, []string{emojiID + ".gif", emojiID + ".png"}, *requested)
	require.Len(t, session.created, 1)
	assert.Equal(t, "copied", session.created[0].Name)
}

func TestStealAnimatedEmoji(t *testing.T) {
	server, _ := newCDN(t, map[string][]byte{emojiID + ".gif": gifBytes(t)})
	session := &fakeSession{}
	rep := &recorder{}

	err := NewStealer(session, nil).WithCDN(server.URL+"/emojis/").Steal(context.Background(), rep, "g", "", "<a:dance:"+emojiID+">")
	require.NoError(t, err)
	require.Len(t, session.created, 1)
	assert.True(t, strings.HasPrefix(session.created[0].Image, "data:image/gif;base64,"))
}

func TestStealRefusals(t *testing.T) {
	server, _ := newCDN(t, map[string][]byte{emojiID + ".png": []byte("not an image")})
	session := &fakeSession{emojis: []*discordgo.Emoji{{ID: "9", Name: "taken"}}}
	stealer := NewStealer(session, nil).WithCDN(server.URL + "/emojis/")

	cases := []struct {
		name    string
		guildID string
		emoji   string
		input   string
		want    string
	}{
		{"dm", "", "x", emojiID, "error: Server not found, make sure you aren't running this from a DM!"},
		{"unicode", "g", "x", "😀", "error: Emoji must be a custom emoji, an emoji ID or an emoji URL!"},
		{"no name", "g", "", emojiID, "error: An emoji name is required when stealing by ID or URL!"},
		{"bad name", "g", "a b", emojiID, "error: Emoji names must be 2 to 32 letters, numbers or underscores!"},
		{"duplicate", "g", "", "<:taken:" + emojiID + ">", "error: There is already an emoji with the name `taken`!"},
		{"missing", "g", "ghost", "987654321098765432", "error: Couldn't find an emoji with the ID `987654321098765432`!"},
		{"invalid image", "g", "junk", "<:junk:" + emojiID + ">", "error: That emoji isn't a valid image!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := &recorder{}
			require.NoError(t, stealer.Steal(context.Background(), rep, tc.guildID, tc.emoji, tc.input))
			assert.Equal(t, []string{tc.want}, rep.entries)
		})
	}
	assert.Empty(t, session.created)
}

func TestStealRefusesOversizedImage(t *testing.T) {
	big := append(pngBytes(t), make([]byte, MaxSize)...)
	server, _ := newCDN(t, map[string][]byte{emojiID + ".png": big})
	rep := &recorder{}

	err := NewStealer(&fakeSession{}, nil).WithCDN(server.URL+"/emojis/").Steal(context.Background(), rep, "g", "", "<:big:"+emojiID+">")
	require.NoError(t, err)
	assert.Equal(t, []string{"error: That emoji is larger than 256 KB, Discord won't accept it!"}, rep.entries)
}
