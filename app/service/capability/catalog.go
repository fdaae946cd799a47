package capability

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/llms"
)

// Name identifies a capability of the closed catalog.
type Name string

const (
	ListUserParcels      Name = "list_user_parcels"
	LookupParcelByName   Name = "lookup_parcel_by_name"
	GetParcelDetails     Name = "get_parcel_details"
	GetWeatherForecast   Name = "get_weather_forecast"
	GetPrecipitationData Name = "get_precipitation_data"
	GetParcelHealth      Name = "get_parcel_health_indices"
	GetHistoricalWeather Name = "get_historical_weather_summary"
	GetMarketPrice       Name = "get_market_price"
	GetAgroStatistics    Name = "get_agro_statistics"
	SearchKnowledgeBase  Name = "search_knowledge_base"
	GetKPISummary        Name = "get_kpi_summary"
	ClassifySubstances   Name = "classify_substances"
)

type ListUserParcelsArgs struct {
	UserID string `json:"user_id" jsonschema:"description=Owner of the parcels"`
}

type LookupParcelByNameArgs struct {
	NameQuery string `json:"name_query" jsonschema:"description=Parcel name or part of it"`
	UserID    string `json:"user_id"`
}

type ParcelArgs struct {
	ParcelID int `json:"parcel_id" jsonschema:"minimum=1"`
}

type WeatherForecastArgs struct {
	Location string `json:"location" jsonschema:"description=Coordinates as lat and lon or a city name"`
}

type PrecipitationArgs struct {
	ParcelID int `json:"parcel_id" jsonschema:"minimum=1"`
	DaysBack int `json:"days_back,omitempty" jsonschema:"minimum=1,maximum=16"`
}

type HealthIndicesArgs struct {
	ParcelID  int    `json:"parcel_id" jsonschema:"minimum=1"`
	StartDate string `json:"start_date" jsonschema:"description=YYYY-MM-DD"`
	EndDate   string `json:"end_date" jsonschema:"description=YYYY-MM-DD"`
}

type HistoricalWeatherArgs struct {
	Latitude  float64 `json:"latitude" jsonschema:"minimum=-90,maximum=90"`
	Longitude float64 `json:"longitude" jsonschema:"minimum=-180,maximum=180"`
	DaysBack  int     `json:"days_back,omitempty" jsonschema:"minimum=1,maximum=365"`
}

type MarketPriceArgs struct {
	ProductName string `json:"product_name"`
}

type AgroStatisticsArgs struct {
	Department string `json:"departamento"`
	Product    string `json:"producto"`
	Limit      int    `json:"limite,omitempty" jsonschema:"minimum=1,maximum=1000"`
}

type KnowledgeBaseArgs struct {
	Query string `json:"query"`
}

type KPISummaryArgs struct {
	UserID string `json:"user_id,omitempty" jsonschema:"description=Restrict the summary to one user"`
}

type ClassifySubstancesArgs struct {
	Text string `json:"text"`
}

// Spec describes one capability: what it does and the shape of its arguments.
type Spec struct {
	Name        Name
	Description string
	Args        any
}

var defaultSpecs = []Spec{
	{ListUserParcels, "Lista las parcelas registradas de un usuario.", ListUserParcelsArgs{}},
	{LookupParcelByName, "Busca una parcela del usuario por su nombre.", LookupParcelByNameArgs{}},
	{GetParcelDetails, "Devuelve cultivo, área, suelo, riego y ubicación de una parcela.", ParcelArgs{}},
	{GetWeatherForecast, "Pronóstico del tiempo actual para coordenadas o una ciudad.", WeatherForecastArgs{}},
	{GetPrecipitationData, "Precipitación histórica reciente de una parcela.", PrecipitationArgs{}},
	{GetParcelHealth, "Índices de vegetación satelitales (NDVI, NDWI) de una parcela.", HealthIndicesArgs{}},
	{GetHistoricalWeather, "Resumen climático histórico: heladas, calor y lluvia acumulada.", HistoricalWeatherArgs{}},
	{GetMarketPrice, "Precio de mercado actual de un producto agrícola.", MarketPriceArgs{}},
	{GetAgroStatistics, "Estadísticas agropecuarias oficiales por departamento y producto.", AgroStatisticsArgs{}},
	{SearchKnowledgeBase, "Búsqueda en la base documental agronómica.", KnowledgeBaseArgs{}},
	{GetKPISummary, "Resumen de indicadores de desempeño del asistente.", KPISummaryArgs{}},
	{ClassifySubstances, "Detecta sustancias restringidas mencionadas en un texto.", ClassifySubstancesArgs{}},
}

type entry struct {
	spec     Spec
	argsType reflect.Type
	params   map[string]any
	schema   *schemavalidator.Schema
}

// Catalog holds the compiled argument schema of every known capability.
type Catalog struct {
	entries map[Name]*entry
	order   []Name
}

func NewCatalog() (*Catalog, error) {
	return NewCatalogOf(defaultSpecs...)
}

func NewCatalogOf(specs ...Spec) (*Catalog, error) {
	reflector := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	c := &Catalog{entries: make(map[Name]*entry, len(specs))}

	for _, spec := range specs {
		if _, dup := c.entries[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate capability %s", spec.Name)
		}

		raw, err := json.Marshal(reflector.Reflect(spec.Args))
		if err != nil {
			return nil, fmt.Errorf("capability %s schema: %w", spec.Name, err)
		}

		var params map[string]any
		if err = json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("capability %s schema: %w", spec.Name, err)
		}
		delete(params, "$schema")

		compiler := schemavalidator.NewCompiler()
		url := string(spec.Name) + ".json"
		if err = compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
			return nil, fmt.Errorf("capability %s schema: %w", spec.Name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("capability %s schema: %w", spec.Name, err)
		}

		c.entries[spec.Name] = &entry{
			spec:     spec,
			argsType: reflect.TypeOf(spec.Args),
			params:   params,
			schema:   compiled,
		}
		c.order = append(c.order, spec.Name)
	}

	return c, nil
}

func (c *Catalog) Has(name Name) bool {
	_, ok := c.entries[name]
	return ok
}

func (c *Catalog) Names() []Name {
	return append([]Name(nil), c.order...)
}

// Definition is the function declaration handed to the model.
func (c *Catalog) Definition(name Name) (llms.Tool, bool) {
	e, ok := c.entries[name]
	if !ok {
		return llms.Tool{}, false
	}

	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        string(name),
			Description: e.spec.Description,
			Parameters:  e.params,
		},
	}, true
}

// Decode validates raw arguments against the capability schema and returns
// them normalised through the typed argument struct.
func (c *Catalog) Decode(name Name, raw string) (string, error) {
	e, ok := c.entries[name]
	if !ok {
		return "", fmt.Errorf("unknown capability: %s", name)
	}

	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("invalid arguments JSON: %w", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	typed := reflect.New(e.argsType)
	if err := json.Unmarshal([]byte(raw), typed.Interface()); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	normalized, err := json.Marshal(typed.Interface())
	if err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	return string(normalized), nil
}
