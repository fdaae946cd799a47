package responder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"agrosmi/app/client/llm"
	"agrosmi/app/service/conversation"
	"agrosmi/app/service/kpi"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/tmc/langchaingo/llms"
)

const (
	noImageText        = "No se proporcionó ninguna imagen para analizar. Por favor, sube una foto del cultivo."
	visionFallbackText = "Error al analizar la imagen. Por favor, intenta con una imagen más clara."
	defaultConfidence  = 0.5
)

var (
	diagnosisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)DIAGN[ÓO]STICO PRINCIPAL[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)Diagn[óo]stico[:\s]*([^\n]+)`),
		regexp.MustCompile(`(?i)\*\*([^*]+)\*\*.*Confianza`),
		regexp.MustCompile(`🎯[:\s]*([^\n]+)`),
	}
	confidencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Confianza[:\s]*.*?(\d+)%`),
		regexp.MustCompile(`(?i)(\d+)%.*confianza`),
		regexp.MustCompile(`[🟢🟡🔴]\s*(\d+)%`),
	}
)

// Vision analyses the turn attachment with a multimodal model in a single call.
type Vision struct {
	def     Definition
	model   llms.Model
	emitter kpi.Emitter
}

var _ Responder = (*Vision)(nil)

func NewVision(def Definition, model llms.Model, emitter kpi.Emitter) *Vision {
	if def.Fallback == "" {
		def.Fallback = visionFallbackText
	}

	return &Vision{
		def:     def,
		model:   model,
		emitter: emitter,
	}
}

func (v *Vision) ID() string {
	return v.def.ID
}

func (v *Vision) Description() string {
	return v.def.Description
}

func (v *Vision) Respond(ctx context.Context, st *conversation.State) conversation.Message {
	attachment := st.Attachment()
	if attachment == nil {
		return conversation.NewMessage(v.def.ID, conversation.Text(noImageText))
	}

	mimeType := attachment.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(attachment.Data)
	}

	prompt := fillTemplate(v.def.Instructions, st)
	if query := strings.TrimSpace(st.UserQuery()); query != "" {
		prompt += "\n\nConsulta del usuario: " + query
	}

	start := time.Now()
	res, err := v.model.GenerateContent(ctx, []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: prompt},
			llms.BinaryPart(mimeType, attachment.Data),
		},
	}}, llms.WithTemperature(v.def.Temperature))

	var text string
	if err == nil {
		var choice *llms.ContentChoice
		if choice, err = llm.FirstChoice(res); err == nil {
			text = strings.TrimSpace(choice.Content)
		}
	}
	if err != nil || text == "" {
		slog.WarnContext(ctx, "Vision analysis failed",
			"turn_id", st.TurnID,
			"error", err,
		)
		return conversation.NewMessage(v.def.ID, conversation.Text(v.def.Fallback))
	}

	if diagnosis, confidence, ok := ExtractDiagnosis(text); ok && v.emitter != nil {
		v.emitter.Emit(kpi.KindDiagnosis, kpi.Diagnosis{
			TurnID:         st.TurnID,
			UserID:         st.UserID,
			Diagnosis:      diagnosis,
			Confidence:     confidence,
			ProcessingTime: time.Since(start).Seconds(),
			ImageSizeKB:    len(attachment.Data) / 1024,
			Conditions:     ImageConditions(attachment.Data, mimeType),
		})
	}

	return conversation.NewMessage(v.def.ID, conversation.Text(text))
}

// ExtractDiagnosis finds the main diagnosis and its confidence in a vision
// answer. Confidence defaults to 0.5 when the answer does not state it.
func ExtractDiagnosis(output string) (string, float64, bool) {
	diagnosis := ""
	for _, pattern := range diagnosisPatterns {
		if match := pattern.FindStringSubmatch(output); match != nil {
			diagnosis = strings.Trim(strings.TrimSpace(match[1]), "*")
			break
		}
	}
	if diagnosis == "" {
		return "", 0, false
	}

	confidence := defaultConfidence
	for _, pattern := range confidencePatterns {
		if match := pattern.FindStringSubmatch(output); match != nil {
			if value, err := strconv.Atoi(match[1]); err == nil && value <= 100 {
				confidence = float64(value) / 100
			}
			break
		}
	}

	return strings.TrimSpace(diagnosis), confidence, true
}

// ImageConditions describes the capture conditions found in the image EXIF
// metadata, when there is any.
func ImageConditions(data []byte, mimeType string) map[string]string {
	conditions := map[string]string{
		"size_kb": strconv.Itoa(len(data) / 1024),
		"format":  mimeType,
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		conditions["exif"] = "none"
		return conditions
	}

	if tm, err := x.DateTime(); err == nil {
		conditions["captured_at"] = tm.Format(time.RFC3339)
	}
	if lat, long, err := x.LatLong(); err == nil {
		conditions["gps"] = fmt.Sprintf("%.5f,%.5f", lat, long)
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if model, err := tag.StringVal(); err == nil {
			conditions["camera"] = strings.TrimSpace(model)
		}
	}
	if tag, err := x.Get(exif.Flash); err == nil {
		if flash, err := tag.Int(0); err == nil {
			conditions["flash"] = strconv.FormatBool(flash&1 == 1)
		}
	}
	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if width, err := tag.Int(0); err == nil {
			conditions["width"] = strconv.Itoa(width)
		}
	}

	return conditions
}
