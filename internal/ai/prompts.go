package ai

import (
	"fmt"
	"strings"

	"github.com/jkindrix/zenquote/internal/domain"
)

// ClassifierPrompt instructs the model to answer with a single intent word.
const ClassifierPrompt = `Eres un clasificador de peticiones.
Analiza el siguiente mensaje del revendedor.
Tu única respuesta debe ser una de estas tres palabras:
- 'RECOMENDACION' si la pregunta es para pedir una sugerencia de servicio o un plan para un proyecto.
- 'TEXTO' para cualquier otra cosa (saludos, preguntas técnicas, dudas de precios, etc.).
- 'DESCONOCIDA' si no puedes clasificar la intención con certeza.
Responde solo con la palabra en mayúsculas, sin explicaciones.`

const recommendationPromptTemplate = `Eres Zen Assistant, un estratega de productos y coach de ventas de élite.
Tu tarea es analizar las necesidades del cliente y construir la solución perfecta, usando servicios existentes o creando nuevos si es necesario.

%s

INSTRUCCIONES CLAVE:
1. Genera una respuesta ESTRICTAMENTE en el formato JSON especificado.
2. Analiza la petición. Para cada servicio que recomiendes, crea un objeto en el array 'services'.
3. **Para servicios existentes del CATÁLOGO:** Usa su 'id' y 'name' reales, y pon 'is_new: false'. No necesitas añadir 'description' o 'price'.
4. **SI UN SERVICIO NECESARIO NO EXISTE:** ¡Créalo! Pon 'is_new: true', inventa un 'id' único (ej: 'custom-integration-crm'), un 'name' claro, una 'description' vendedora y un 'price' de producción justo. Esta es tu función más importante.
5. En 'client_questions', crea preguntas para descubrir más oportunidades.
6. En 'sales_pitch', escribe un párrafo de venta enfocado en los beneficios.`

// TextPrompt is the system instruction for general questions.
const TextPrompt = `Eres Zen Assistant. Actúa como un asistente de ventas general experto en desarrollo web.

INSTRUCCIONES CLAVE:
- Responde de forma cortés, profesional y concisa.
- Responde directamente a la consulta del revendedor.`

// RecommendationPrompt embeds the catalog description in the recommendation instruction.
func RecommendationPrompt(catalog *domain.Catalog) string {
	return fmt.Sprintf(recommendationPromptTemplate, CatalogDescription(catalog))
}

// CatalogDescription renders every service and plan as one line each.
func CatalogDescription(catalog *domain.Catalog) string {
	var services, plans []string
	if catalog != nil {
		for _, key := range catalog.CategoryKeys() {
			for _, s := range catalog.Categories[key].Items {
				services = append(services, catalogLine(s.ID, s.Name, s.Description))
			}
		}
		for _, p := range catalog.Plans {
			plans = append(plans, catalogLine(p.ID, p.Name, p.Description))
		}
	}

	var sb strings.Builder
	sb.WriteString("--- CATÁLOGO COMPLETO DE SERVICIOS ---\n")
	sb.WriteString("SERVICIOS ESTÁNDAR:\n")
	sb.WriteString(strings.Join(services, "\n"))
	sb.WriteString("\nPLANES MENSUALES:\n")
	sb.WriteString(strings.Join(plans, "\n"))
	return sb.String()
}

func catalogLine(id, name, description string) string {
	return fmt.Sprintf("ID: %s | Nombre: %s | Descripción: %s", id, name, description)
}

// RecommendationSchema describes the JSON shape of a structured recommendation.
func RecommendationSchema() *Schema {
	return &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"introduction": {
				Type:        "STRING",
				Description: "Breve introducción profesional para el revendedor, antes de listar los IDs.",
			},
			"services": {
				Type:        "ARRAY",
				Description: "Array de objetos de servicio recomendados.",
				Items: &Schema{
					Type: "OBJECT",
					Properties: map[string]*Schema{
						"id":          {Type: "STRING", Description: "El ID del servicio (ej: 's1', 'p4')."},
						"is_new":      {Type: "BOOLEAN", Description: "True si es una sugerencia de servicio nuevo; false si existe en el catálogo."},
						"name":        {Type: "STRING", Description: "El nombre del servicio."},
						"description": {Type: "STRING", Description: "Una descripción convincente del servicio (solo si is_new es true)."},
						"price":       {Type: "NUMBER", Description: "El costo de producción sugerido (solo si is_new es true)."},
					},
					Required: []string{"id", "is_new", "name"},
				},
			},
			"closing": {
				Type:        "STRING",
				Description: "Conclusión amigable para el revendedor, invitando a añadirlos.",
			},
			"client_questions": {
				Type:        "ARRAY",
				Description: "Array con 2-3 preguntas estratégicas que el revendedor debe hacerle a su CLIENTE FINAL para clarificar el proyecto. Deben ser formuladas para ser usadas directamente con el cliente.",
				Items:       &Schema{Type: "STRING"},
			},
			"sales_pitch": {
				Type:        "STRING",
				Description: "Un párrafo persuasivo y profesional, listo para copiar y pegar. Debe explicarle al CLIENTE FINAL los beneficios de la solución propuesta, enfocándose en el valor y los resultados, no en la jerga técnica. Debe empezar con una frase como 'Con esta propuesta, obtendrás...' o similar.",
			},
		},
		Required: []string{"introduction", "services", "closing", "client_questions", "sales_pitch"},
	}
}
