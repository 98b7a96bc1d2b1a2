package service

import (
	"fmt"

	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
)

// Menu option values offered on the welcome screen.
const (
	MenuPlaneaciones = "planeaciones"
	MenuMEDs         = "meds"
	MenuEvaluacion   = "evaluacion"
	MenuMetodologias = "metodologias"
	MenuProgramas    = "programas"
	MenuGeneral      = "general"
	MenuPerfil       = "perfil"
	MenuOtro         = "otro"
)

// menuOptions is the fixed welcome menu, in display order.
var menuOptions = []chat.Option{
	{Label: "📚 Ayuda con Planeaciones", Value: MenuPlaneaciones, Description: "Crear y mejorar planeaciones didácticas"},
	{Label: "📖 Materiales Educativos (MEDs)", Value: MenuMEDs, Description: "Buscar y crear materiales educativos"},
	{Label: "🎯 Evaluación y Diagnóstico", Value: MenuEvaluacion, Description: "Herramientas de evaluación y diagnóstico educativo"},
	{Label: "🔧 Metodologías de Enseñanza", Value: MenuMetodologias, Description: "Estrategias y metodologías pedagógicas"},
	{Label: "📋 Programas Analíticos", Value: MenuProgramas, Description: "Ayuda con programas analíticos y secuencias"},
	{Label: "❓ Preguntas Generales", Value: MenuGeneral, Description: "Consultas generales sobre educación"},
	{Label: "⚙️ Configurar Perfil", Value: MenuPerfil, Description: "Actualizar información de su perfil"},
	{Label: "✍️ Escribir Consulta Personalizada", Value: MenuOtro, Description: "Escribir su consulta específica directamente"},
}

// menuQueries maps content menu selections to fixed search phrases fed into
// the normal routing pipeline.
var menuQueries = map[string]string{
	MenuPlaneaciones: "Buscar planeaciones didácticas para educación",
	MenuMEDs:         "Buscar materiales educativos digitales",
	MenuEvaluacion:   "Buscar herramientas de evaluación educativa",
	MenuMetodologias: "Buscar metodologías de enseñanza",
	MenuProgramas:    "Buscar programas analíticos educativos",
}

// profileQuestions is the fixed profile-setup questionnaire.
var profileQuestions = []chat.Question{
	{
		Field: profile.FieldLevel,
		Text:  "¿En qué nivel educativo enseña?",
		Options: []chat.Option{
			{Label: "Preescolar", Value: "preescolar"},
			{Label: "Primaria", Value: "primaria"},
			{Label: "Secundaria", Value: "secundaria"},
			{Label: "Preparatoria", Value: "preparatoria"},
			{Label: "Universidad", Value: "universidad"},
		},
	},
	{
		Field: profile.FieldGrade,
		Text:  "¿Qué grado específico maneja?",
		Options: []chat.Option{
			{Label: "1er Grado", Value: "primero"},
			{Label: "2do Grado", Value: "segundo"},
			{Label: "3er Grado", Value: "tercero"},
			{Label: "4to Grado", Value: "cuarto"},
			{Label: "5to Grado", Value: "quinto"},
			{Label: "6to Grado", Value: "sexto"},
		},
	},
	{
		Field: profile.FieldSubject,
		Text:  "¿Qué materia o área enseña principalmente?",
		Options: []chat.Option{
			{Label: "Matemáticas", Value: "matematicas"},
			{Label: "Español", Value: "espanol"},
			{Label: "Ciencias Naturales", Value: "ciencias"},
			{Label: "Historia", Value: "historia"},
			{Label: "Geografía", Value: "geografia"},
			{Label: "Educación Física", Value: "edfisica"},
			{Label: "Artes", Value: "artes"},
			{Label: "Otra", Value: "otra"},
		},
	},
}

// WelcomeResponse builds the greeting menu shown on the first message of a
// conversation, personalized with the user's name when the profile has one.
func WelcomeResponse(p *profile.Profile) chat.Response {
	name := p.DisplayName()
	msg := fmt.Sprintf("¡Bienvenido, %s! Soy MentorIA, su asistente educativo personal.\n\n"+
		"Como su fiel asistente, estoy aquí para ayudarle con todas sus necesidades educativas.\n\n"+
		"¿En qué puedo asistirle hoy?", name)

	return chat.Response{
		Type: chat.TypeWelcome,
		Welcome: &chat.WelcomePayload{
			Message: msg,
			Options: menuOptions,
		},
	}
}

// ProfileSetupResponse builds the profile questionnaire shown after the
// "perfil" menu selection.
func ProfileSetupResponse() chat.Response {
	return chat.Response{
		Type: chat.TypeButtons,
		Buttons: &chat.ButtonsPayload{
			Message: "Excelente elección. Para brindarle la mejor asistencia posible, " +
				"necesito conocer algunos detalles sobre su contexto educativo.",
			Questions: profileQuestions,
		},
	}
}

// CustomQueryResponse builds the free-text prompt shown after the "otro"
// menu selection.
func CustomQueryResponse() chat.Response {
	return chat.Response{
		Type: chat.TypeTextInput,
		TextInput: &chat.TextInputPayload{
			Message: "Excelente elección. Por favor, escriba su pregunta o solicitud específica " +
				"y haré todo lo posible por brindarle la mejor asistencia posible.",
			Placeholder: "Escriba su consulta aquí...",
		},
	}
}
