package collaborator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"lecture-gen/config"
	"lecture-gen/dto"
)

// ErrUpstream marks any collaborator failure: transport errors, non-2xx
// responses and payloads that do not match the expected contract.
var ErrUpstream = errors.New("collaborator call failed")

const maxErrorBody = 512

type Client struct {
	httpClient *http.Client
	cfg        config.Collaborators
}

func NewClient(cfg config.Collaborators) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

func upstreamError(name string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrUpstream, name, fmt.Sprintf(format, args...))
}

func (c *Client) do(ctx context.Context, name string, ep config.Endpoint, contentType string, body io.Reader) ([]byte, error) {
	if ep.URL == "" {
		return nil, upstreamError(name, "endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("Content-Type", contentType)
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrUpstream, name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, upstreamError(name, "unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(snippet))
	}

	return respBody, nil
}

func (c *Client) postJSON(ctx context.Context, name string, ep config.Endpoint, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", name, err)
	}

	body, err := c.do(ctx, name, ep, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return upstreamError(name, "malformed payload: %v", err)
	}
	return nil
}

// StripReferences asks the collaborator to drop bibliography pages from the
// PDF at pdfUrl and returns the filtered document.
func (c *Client) StripReferences(ctx context.Context, pdfUrl string) ([]byte, error) {
	var resp struct {
		Success bool   `json:"success"`
		Pdf     string `json:"pdf"`
		Error   string `json:"error"`
	}
	err := c.postJSON(ctx, "reference_stripping", c.cfg.ReferenceStripping, map[string]string{"pdfUrl": pdfUrl}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, upstreamError("reference_stripping", "unsuccessful response: %s", resp.Error)
	}

	pdf, err := base64.StdEncoding.DecodeString(resp.Pdf)
	if err != nil {
		return nil, upstreamError("reference_stripping", "malformed pdf payload: %v", err)
	}
	if len(pdf) == 0 {
		return nil, upstreamError("reference_stripping", "empty pdf payload")
	}
	return pdf, nil
}

// ExtractText returns the raw text of pdf. The response key holding the text
// is pinned by configuration rather than guessed.
func (c *Client) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	var resp map[string]json.RawMessage
	payload := map[string]string{"pdf_base64": base64.StdEncoding.EncodeToString(pdf)}
	if err := c.postJSON(ctx, "text_extraction", c.cfg.TextExtraction, payload, &resp); err != nil {
		return "", err
	}

	field := c.cfg.TextField
	if field == "" {
		field = "full_text"
	}
	raw, ok := resp[field]
	if !ok {
		return "", upstreamError("text_extraction", "response has no %q field", field)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", upstreamError("text_extraction", "field %q is not a string", field)
	}
	return text, nil
}

func (c *Client) Reorganize(ctx context.Context, rawPaper string) (string, error) {
	var resp struct {
		ExtractedText string `json:"extractedText"`
	}
	if err := c.postJSON(ctx, "reorganization", c.cfg.Reorganization, map[string]string{"rawPaper": rawPaper}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ExtractedText) == "" {
		return "", upstreamError("reorganization", "empty extractedText")
	}
	return resp.ExtractedText, nil
}

func (c *Client) GenerateSlides(ctx context.Context, paper string) (string, error) {
	var resp struct {
		Slides string `json:"slides"`
	}
	if err := c.postJSON(ctx, "slide_generation", c.cfg.SlideGeneration, map[string]string{"paper": paper}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Slides) == "" {
		return "", upstreamError("slide_generation", "empty slides")
	}
	return resp.Slides, nil
}

// ExtractSlide submits a single raw slide block and returns its structure.
func (c *Client) ExtractSlide(ctx context.Context, block string) (dto.Slide, error) {
	var resp struct {
		Slides []dto.Slide `json:"slides"`
	}
	if err := c.postJSON(ctx, "structured_extraction", c.cfg.StructuredExtraction, map[string]string{"slidesRaw": block}, &resp); err != nil {
		return dto.Slide{}, err
	}
	if len(resp.Slides) == 0 {
		return dto.Slide{}, upstreamError("structured_extraction", "no slides in response")
	}
	return resp.Slides[0], nil
}

// Synthesize returns mp3 audio for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}

	audio, err := c.do(ctx, "speech", c.cfg.Speech, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, upstreamError("speech", "empty audio payload")
	}
	return audio, nil
}

// ComposeVideo uploads the slide deck and every non-empty voiceover and
// returns the location of the rendered video.
func (c *Client) ComposeVideo(ctx context.Context, slides []dto.Slide, voiceovers []dto.Voiceover) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	slidesJSON, err := json.Marshal(slides)
	if err != nil {
		return "", fmt.Errorf("video_composition: marshal slides: %w", err)
	}
	if err := writePart(mw, "slides", "slides.json", "application/json", slidesJSON); err != nil {
		return "", err
	}

	for _, v := range voiceovers {
		if v.Empty() {
			continue
		}
		if err := writePart(mw, "voiceovers", VoiceoverFileName(v.Index), "audio/mpeg", v.Audio); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("video_composition: close multipart: %w", err)
	}

	respBody, err := c.do(ctx, "video_composition", c.cfg.VideoComposition, mw.FormDataContentType(), body)
	if err != nil {
		return "", err
	}

	var resp struct {
		VideoUrl string `json:"video_url"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", upstreamError("video_composition", "malformed payload: %v", err)
	}
	if resp.VideoUrl == "" {
		return "", upstreamError("video_composition", "empty video_url")
	}
	return resp.VideoUrl, nil
}

func VoiceoverFileName(index int) string {
	return fmt.Sprintf("voiceover_%d.mp3", index)
}

func writePart(mw *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("video_composition: create part %s: %w", filename, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("video_composition: write part %s: %w", filename, err)
	}
	return nil
}
