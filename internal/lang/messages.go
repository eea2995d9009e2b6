// Localized canned strings. These are the only texts the server produces
// without calling the model: quota notices, the generic failure apology,
// subscription confirmations, and the broadcast unsubscribe footer.
package lang

// messageKey selects one canned string.
type messageKey int

const (
	msgLimitReached messageKey = iota
	msgApology
	msgSubscribed
	msgUnsubscribed
	msgUnsubFooter
)

var messages = map[string]map[messageKey]string{
	"en": {
		msgLimitReached: "You've reached today's message limit. Come back tomorrow — we'll keep the stove warm!",
		msgApology:      "Sorry, something went wrong on our side. Please try again in a moment.",
		msgSubscribed:   "You're subscribed! You'll receive our weekly recipe inspiration. Reply STOP anytime to opt out.",
		msgUnsubscribed: "You've been unsubscribed. Reply START whenever you'd like recipes again.",
		msgUnsubFooter:  "Reply STOP to unsubscribe.",
	},
	"fr": {
		msgLimitReached: "Vous avez atteint la limite de messages du jour. Revenez demain, on garde le four chaud !",
		msgApology:      "Désolé, un souci de notre côté. Merci de réessayer dans un instant.",
		msgSubscribed:   "C'est noté, vous êtes inscrit ! Vous recevrez nos idées recettes chaque semaine. Répondez STOP pour vous désinscrire.",
		msgUnsubscribed: "Vous êtes désinscrit. Répondez START pour recevoir à nouveau nos recettes.",
		msgUnsubFooter:  "Répondez STOP pour vous désinscrire.",
	},
	"es": {
		msgLimitReached: "Has alcanzado el límite de mensajes de hoy. ¡Vuelve mañana, te esperamos con más recetas!",
		msgApology:      "Lo sentimos, algo salió mal. Inténtalo de nuevo en un momento.",
		msgSubscribed:   "¡Listo, estás suscrito! Recibirás nuestra inspiración semanal. Responde STOP para darte de baja.",
		msgUnsubscribed: "Te has dado de baja. Responde START cuando quieras volver a recibir recetas.",
		msgUnsubFooter:  "Responde STOP para darte de baja.",
	},
	"de": {
		msgLimitReached: "Du hast das Tageslimit an Nachrichten erreicht. Schau morgen wieder vorbei!",
		msgApology:      "Entschuldigung, bei uns ist etwas schiefgelaufen. Bitte versuche es gleich noch einmal.",
		msgSubscribed:   "Du bist angemeldet! Du bekommst jede Woche Rezeptideen. Antworte STOP zum Abmelden.",
		msgUnsubscribed: "Du bist abgemeldet. Antworte START, wenn du wieder Rezepte möchtest.",
		msgUnsubFooter:  "Antworte STOP zum Abmelden.",
	},
	"it": {
		msgLimitReached: "Hai raggiunto il limite di messaggi di oggi. Torna domani!",
		msgApology:      "Spiacenti, qualcosa è andato storto. Riprova tra un istante.",
		msgSubscribed:   "Iscrizione confermata! Riceverai le nostre ricette ogni settimana. Rispondi STOP per annullare.",
		msgUnsubscribed: "Iscrizione annullata. Rispondi START per ricevere di nuovo le ricette.",
		msgUnsubFooter:  "Rispondi STOP per annullare l'iscrizione.",
	},
	"pt": {
		msgLimitReached: "Você atingiu o limite de mensagens de hoje. Volte amanhã!",
		msgApology:      "Desculpe, algo deu errado do nosso lado. Tente novamente em instantes.",
		msgSubscribed:   "Inscrição confirmada! Você receberá nossas receitas toda semana. Responda STOP para cancelar.",
		msgUnsubscribed: "Inscrição cancelada. Responda START para voltar a receber receitas.",
		msgUnsubFooter:  "Responda STOP para cancelar.",
	},
	"nl": {
		msgLimitReached: "Je hebt de dagelijkse berichtenlimiet bereikt. Kom morgen terug!",
		msgApology:      "Sorry, er ging iets mis aan onze kant. Probeer het zo opnieuw.",
		msgSubscribed:   "Je bent aangemeld! Je ontvangt wekelijks receptinspiratie. Antwoord STOP om je af te melden.",
		msgUnsubscribed: "Je bent afgemeld. Antwoord START om weer recepten te ontvangen.",
		msgUnsubFooter:  "Antwoord STOP om je af te melden.",
	},
	"ar": {
		msgLimitReached: "لقد وصلت إلى الحد اليومي للرسائل. عُد غدًا!",
		msgApology:      "عذرًا، حدث خطأ من جانبنا. يرجى المحاولة مرة أخرى بعد قليل.",
		msgSubscribed:   "تم الاشتراك! ستصلك وصفاتنا أسبوعيًا. أرسل STOP لإلغاء الاشتراك.",
		msgUnsubscribed: "تم إلغاء الاشتراك. أرسل START لاستلام الوصفات مجددًا.",
		msgUnsubFooter:  "أرسل STOP لإلغاء الاشتراك.",
	},
}

func canned(lang string, key messageKey) string {
	if m, ok := messages[Normalize(lang)]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages[Default][key]
}

// LimitReached is the localized daily-quota notice.
func LimitReached(lang string) string { return canned(lang, msgLimitReached) }

// Apology is the localized generic failure message; it never exposes
// upstream error details.
func Apology(lang string) string { return canned(lang, msgApology) }

// SubscribeConfirm is the localized subscription confirmation.
func SubscribeConfirm(lang string) string { return canned(lang, msgSubscribed) }

// UnsubscribeConfirm is the localized unsubscription confirmation.
func UnsubscribeConfirm(lang string) string { return canned(lang, msgUnsubscribed) }

// UnsubscribeFooter is the localized opt-out footer appended to broadcasts.
func UnsubscribeFooter(lang string) string { return canned(lang, msgUnsubFooter) }
