package diagram

import (
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

type titlePattern struct {
	keywords []string
	titles   []string
}

// creativePatterns are checked before the basic table.
var creativePatterns = []titlePattern{
	{
		keywords: []string{"tortilla", "receta", "cocinar", "ingredientes", "patatas"},
		titles:   []string{"Receta de Tortilla Española", "Técnica Culinaria Tradicional", "Preparación Gastronómica"},
	},
	{
		keywords: []string{"usuario", "login", "autenticar"},
		titles:   []string{"Autenticación de Usuarios", "Portal de Acceso", "Gestión de Identidades"},
	},
	{
		keywords: []string{"compra", "pago", "tienda"},
		titles:   []string{"Experiencia de Compra", "Journey del Cliente", "Ecosistema E-commerce"},
	},
	{
		keywords: []string{"datos", "proceso", "información"},
		titles:   []string{"Pipeline de Datos", "Arquitectura de Información", "Flujo de Procesamiento"},
	},
	{
		keywords: []string{"proyecto", "desarrollo"},
		titles:   []string{"Metodología de Desarrollo", "Lifecycle del Proyecto", "Framework de Trabajo"},
	},
}

var basicPatterns = []titlePattern{
	{
		keywords: []string{"tortilla", "receta", "cocinar", "ingredientes", "patatas", "cocina"},
		titles:   []string{"Receta de Tortilla de Patatas", "Proceso de Cocina", "Elaboración de Tortilla"},
	},
	{
		keywords: []string{"login", "autenticar", "autenticación", "usuario", "contraseña"},
		titles:   []string{"Sistema de Autenticación", "Proceso de Login", "Flujo de Autenticación"},
	},
	{
		keywords: []string{"compra", "carrito", "tienda", "pago", "ecommerce", "checkout"},
		titles:   []string{"Proceso de Compra", "Flujo E-commerce", "Sistema de Pagos"},
	},
	{
		keywords: []string{"proceso", "workflow", "flujo", "procedimiento"},
		titles:   []string{"Flujo de Proceso", "Workflow del Sistema", "Procedimiento Operativo"},
	},
	{
		keywords: []string{"registro", "alta", "crear usuario", "signup"},
		titles:   []string{"Registro de Usuario", "Proceso de Alta", "Creación de Cuenta"},
	},
	{
		keywords: []string{"datos", "información", "procesamiento", "análisis"},
		titles:   []string{"Procesamiento de Datos", "Análisis de Información", "Flujo de Datos"},
	},
	{
		keywords: []string{"clase", "objeto", "herencia", "uml"},
		titles:   []string{"Diagrama de Clases", "Estructura UML", "Modelo de Objetos"},
	},
	{
		keywords: []string{"proyecto", "desarrollo", "software", "aplicación"},
		titles:   []string{"Desarrollo de Software", "Ciclo de Proyecto", "Proceso de Desarrollo"},
	},
	{
		keywords: []string{"cliente", "servicio", "atención", "soporte"},
		titles:   []string{"Atención al Cliente", "Proceso de Soporte", "Servicio al Usuario"},
	},
	{
		keywords: []string{"venta", "comercial", "negocio", "marketing"},
		titles:   []string{"Proceso de Ventas", "Flujo Comercial", "Sistema de Negocio"},
	},
	{
		keywords: []string{"comunicación", "mensaje", "notificación", "email"},
		titles:   []string{"Sistema de Comunicación", "Flujo de Mensajes", "Proceso de Notificación"},
	},
}

var defaultTitles = map[model.DiagramKind][]string{
	model.KindFlowchart:    {"Diagrama de Flujo", "Proceso del Sistema", "Flujo de Trabajo"},
	model.KindClassDiagram: {"Diagrama de Clases", "Estructura de Objetos", "Modelo UML"},
	model.KindSequence:     {"Diagrama de Secuencia", "Interacciones del Sistema", "Flujo de Comunicación"},
	model.KindERDiagram:    {"Diagrama ER", "Modelo de Datos", "Estructura de Base de Datos"},
	model.KindGantt:        {"Cronograma de Proyecto", "Planificación Temporal", "Diagrama de Gantt"},
	model.KindPie:          {"Distribución de Datos", "Análisis Estadístico", "Gráfico Circular"},
}

var titleStopWords = map[string]bool{
	"para": true, "como": true, "desde": true, "hasta": true,
	"donde": true, "cuando": true, "porque": true,
}

// Titler picks a display title for a diagram. Titles are chosen at random
// among the candidates of the first matching pattern.
type Titler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTitler creates a Titler. A nil rng uses a randomly seeded source.
func NewTitler(rng *rand.Rand) *Titler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Titler{rng: rng}
}

// Title returns a title for input rendered as the given kind.
func (t *Titler) Title(input string, kind model.DiagramKind) string {
	text := strings.ToLower(strings.TrimSpace(input))

	if titles := matchPattern(creativePatterns, text); titles != nil {
		return t.pick(titles)
	}
	if titles := matchPattern(basicPatterns, text); titles != nil {
		return t.pick(titles)
	}

	var words []string
	for _, w := range strings.Split(text, " ") {
		if utf8.RuneCountInString(w) <= 3 || titleStopWords[w] {
			continue
		}
		words = append(words, capitalize(w))
		if len(words) == 3 {
			break
		}
	}
	if len(words) >= 2 {
		if kind == model.KindClassDiagram {
			return "Diagrama de " + strings.Join(words, " ")
		}
		return "Proceso de " + strings.Join(words, " ")
	}

	titles, ok := defaultTitles[kind]
	if !ok {
		titles = defaultTitles[model.KindFlowchart]
	}
	return t.pick(titles)
}

func (t *Titler) pick(titles []string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return titles[t.rng.IntN(len(titles))]
}

func matchPattern(patterns []titlePattern, text string) []string {
	for _, p := range patterns {
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				return p.titles
			}
		}
	}
	return nil
}

// capitalize upper-cases the first rune and leaves the rest as is.
func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return strings.ToUpper(string(r)) + w[size:]
}
