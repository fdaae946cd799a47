package responder

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"agrosmi/app/client/llm"
	"agrosmi/app/config"
	"agrosmi/app/service/capability"
	"agrosmi/app/service/kpi"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const (
	Production     = "production"
	Water          = "water"
	SupplyChain    = "supply_chain"
	Risk           = "risk"
	Sustainability = "sustainability"
	KPI            = "kpi"
	VisionID       = "vision"
)

//go:embed prompts/*.txt
var prompts embed.FS

func instructions(id string) string {
	data, err := prompts.ReadFile("prompts/" + id + ".txt")
	if err != nil {
		panic(fmt.Sprintf("missing instructions for responder %s", id))
	}

	return string(data)
}

// Definitions returns the default responder set.
func Definitions() []Definition {
	return []Definition{
		{
			ID:          Production,
			Description: "Manejo del cultivo, fertilización, plagas, enfermedades y rendimiento.",
			Capabilities: []capability.Name{
				capability.SearchKnowledgeBase,
				capability.GetParcelDetails,
				capability.ListUserParcels,
				capability.LookupParcelByName,
				capability.GetParcelHealth,
			},
			Fallback:    "Disculpa, ocurrió un error al analizar tu consulta de producción. Por favor, intenta ser más específico sobre la parcela o el problema.",
			Temperature: 0.2,
		},
		{
			ID:          Water,
			Description: "Riego, balance hídrico, lluvia reciente y pronóstico para una parcela.",
			Capabilities: []capability.Name{
				capability.ListUserParcels,
				capability.LookupParcelByName,
				capability.GetParcelDetails,
				capability.GetWeatherForecast,
				capability.GetPrecipitationData,
				capability.GetParcelHealth,
			},
			Fallback:    "Error al analizar gestión hídrica. Por favor, especifica la parcela y el cultivo.",
			Temperature: 0.1,
		},
		{
			ID:          SupplyChain,
			Description: "Precios de mercado, estadísticas oficiales y comercialización.",
			Capabilities: []capability.Name{
				capability.GetMarketPrice,
				capability.GetAgroStatistics,
				capability.GetParcelDetails,
				capability.ListUserParcels,
			},
			Fallback:    "Error al consultar información de mercado. Por favor, especifica el producto.",
			Temperature: 0.1,
		},
		{
			ID:          Risk,
			Description: "Riesgos climáticos: heladas, calor, sequía y alertas.",
			Capabilities: []capability.Name{
				capability.GetWeatherForecast,
				capability.GetHistoricalWeather,
				capability.GetPrecipitationData,
				capability.GetParcelDetails,
				capability.LookupParcelByName,
				capability.ListUserParcels,
			},
			Fallback:    "Error al analizar riesgos. Por favor, especifica la parcela y el tipo de riesgo.",
			Temperature: 0.1,
		},
		{
			ID:          Sustainability,
			Description: "Prácticas sostenibles, certificación orgánica y revisión de químicos recomendados.",
			Capabilities: []capability.Name{
				capability.SearchKnowledgeBase,
				capability.GetParcelDetails,
				capability.LookupParcelByName,
				capability.GetParcelHealth,
			},
			Fallback:    "Disculpa, ocurrió un error al analizar la sostenibilidad. Por favor, intenta reformular tu consulta.",
			Temperature: 0.2,
		},
		{
			ID:          KPI,
			Description: "Indicadores de desempeño del asistente y del estado de las parcelas.",
			Capabilities: []capability.Name{
				capability.GetKPISummary,
				capability.GetParcelHealth,
				capability.GetParcelDetails,
				capability.ListUserParcels,
			},
			Fallback:    "Error al consultar los indicadores. Por favor, intenta más tarde.",
			Temperature: 0.1,
		},
		{
			ID:          VisionID,
			Description: "Diagnóstico visual de la imagen adjunta: enfermedades, plagas y deficiencias.",
			Fallback:    visionFallbackText,
			Temperature: 0.1,
		},
	}
}

// Catalog is the closed set of responders a turn can route to.
type Catalog struct {
	responders map[string]Responder
	order      []string
}

func NewCatalog(responders ...Responder) *Catalog {
	c := &Catalog{responders: make(map[string]Responder, len(responders))}
	for _, r := range responders {
		if _, ok := c.responders[r.ID()]; !ok {
			c.order = append(c.order, r.ID())
		}
		c.responders[r.ID()] = r
	}

	return c
}

func (c *Catalog) Get(id string) (Responder, bool) {
	r, ok := c.responders[id]
	return r, ok
}

func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Responders() []Responder {
	return pie.Map(c.order, func(id string) Responder {
		return c.responders[id]
	})
}

func New(di *do.Injector) (*Catalog, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)
	capabilities := do.MustInvoke[*capability.Service](di)
	kpiSvc := do.MustInvoke[*kpi.Service](di)

	if err := CheckDesignated(Definitions(), cfg.Orchestrator); err != nil {
		return nil, err
	}

	var responders []Responder
	for _, def := range Definitions() {
		if pie.Contains(cfg.Responders.Disabled, def.ID) {
			slog.Info("Responder disabled", "responder", def.ID)
			continue
		}

		modelCfg := cfg.ModelFor(def.ID)
		model, err := llm.New(appCtx, modelCfg)
		if err != nil {
			return nil, fmt.Errorf("responder %s: %w", def.ID, err)
		}
		if modelCfg.Temperature > 0 {
			def.Temperature = modelCfg.Temperature
		}
		def.Instructions = instructions(def.ID)

		if def.ID == cfg.Orchestrator.VisionResponder {
			responders = append(responders, NewVision(def, model, kpiSvc))
			continue
		}

		set, err := capabilities.Set(def.Capabilities...)
		if err != nil {
			return nil, fmt.Errorf("responder %s: %w", def.ID, err)
		}

		responders = append(responders, NewAgent(def, &Executor{
			Model:         model,
			Capabilities:  set,
			MaxIterations: cfg.Responders.MaxIterations,
			Temperature:   def.Temperature,
		}))
	}

	return NewCatalog(responders...), nil
}

// CheckDesignated rejects orchestrator settings naming responders that are
// not defined.
func CheckDesignated(defs []Definition, o config.Orchestrator) error {
	ids := pie.Map(defs, func(d Definition) string {
		return d.ID
	})

	if !pie.Contains(ids, o.VisionResponder) {
		return fmt.Errorf("vision_responder %q is not a known responder", o.VisionResponder)
	}
	if !pie.Contains(ids, o.SafetyResponder) {
		return fmt.Errorf("safety_responder %q is not a known responder", o.SafetyResponder)
	}
	for _, id := range o.Authorities {
		if !pie.Contains(ids, id) {
			return fmt.Errorf("authority %q is not a known responder", id)
		}
	}

	return nil
}
