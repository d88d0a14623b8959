// Package i18n is the localization lookup consumed by the rest of the bot:
// key + language in, formatted string out. A missing key resolves to the
// empty string and never panics; an unknown language falls back to English.
package i18n

import "fmt"

const fallbackLanguage = "en"

// Translations holds per-language string tables.
type Translations struct {
	tables map[string]map[string]string
}

// New returns the standing translation tables (English and Russian).
func New() *Translations {
	return &Translations{tables: map[string]map[string]string{
		"en": {
			"select_language":              "Please select your language / Пожалуйста, выберите язык:",
			"welcome":                      "Hi %s! I'm Anna, your personal beauty consultant.",
			"book_service":                 "Book Service",
			"services":                     "Services",
			"prices":                       "Prices",
			"help":                         "Help",
			"check_appointments":           "Check Appointments",
			"cancel_appointment":           "Cancel Appointment",
			"select_service":               "Please select a service:",
			"select_date":                  "Please select a date:",
			"select_time":                  "Please select a time:",
			"booking_confirmation":         "Booking confirmation:\nService: %s\nDate: %s\nTime: %s\n\nConfirm?",
			"booking_confirmed":            "Your appointment has been confirmed! See you on %s at %s.",
			"booking_cancelled":            "Booking cancelled. How else can I help you?",
			"reminder":                     "Reminder: You have an appointment for %s tomorrow at %s.",
			"no_appointments":              "You have no appointments.",
			"appointments_list":            "Here are your upcoming appointments:\n%s",
			"appointment_conflict":         "You already have an appointment on %s at %s. Please choose a different time.",
			"no_appointments_to_cancel":    "You have no appointments to cancel.",
			"select_appointment_to_cancel": "Please select the appointment you want to cancel:",
			"appointment_cancelled":        "Your appointment for %s on %s at %s has been cancelled.",
			"invalid_selection":            "Invalid appointment selected for cancellation.",
			"invalid_input":                "Sorry, I didn't understand that. Please use the menu buttons.",
			"assistant_unavailable":        "I apologize, I'm having trouble responding right now. Please try again in a moment.",
			"help_text":                    "Here is how you can use this bot:\n- Book a service: choose 'Book Service'\n- View available services: choose 'Services'\n- View prices: choose 'Prices'\n- Check or cancel appointments from the menu\n\nYou can also ask me any questions about beauty services.",
			"confirm":                      "Confirm",
			"cancel":                       "Cancel",
		},
		"ru": {
			"select_language":              "Please select your language / Пожалуйста, выберите язык:",
			"welcome":                      "Привет, %s! Я Анна, ваш персональный консультант по красоте.",
			"book_service":                 "Записаться",
			"services":                     "Услуги",
			"prices":                       "Цены",
			"help":                         "Помощь",
			"check_appointments":           "Проверить записи",
			"cancel_appointment":           "Отменить запись",
			"select_service":               "Пожалуйста, выберите услугу:",
			"select_date":                  "Пожалуйста, выберите дату:",
			"select_time":                  "Пожалуйста, выберите время:",
			"booking_confirmation":         "Подтверждение записи:\nУслуга: %s\nДата: %s\nВремя: %s\n\nПодтвердить?",
			"booking_confirmed":            "Ваша запись подтверждена! Ждём вас %s в %s.",
			"booking_cancelled":            "Запись отменена. Чем ещё я могу помочь?",
			"reminder":                     "Напоминание: у вас завтра запись на %s в %s.",
			"no_appointments":              "У вас нет записей.",
			"appointments_list":            "Вот ваши предстоящие записи:\n%s",
			"appointment_conflict":         "У вас уже есть запись на %s в %s. Пожалуйста, выберите другое время.",
			"no_appointments_to_cancel":    "У вас нет записей для отмены.",
			"select_appointment_to_cancel": "Пожалуйста, выберите запись для отмены:",
			"appointment_cancelled":        "Ваша запись на %s %s в %s была отменена.",
			"invalid_selection":            "Выбрана недействительная запись для отмены.",
			"invalid_input":                "Извините, я не поняла. Пожалуйста, используйте кнопки меню.",
			"assistant_unavailable":        "Извините, сейчас я не могу ответить. Попробуйте ещё раз через минуту.",
			"help_text":                    "Как пользоваться ботом:\n- Записаться на услугу: «Записаться»\n- Посмотреть услуги: «Услуги»\n- Посмотреть цены: «Цены»\n- Проверить или отменить записи через меню\n\nВы также можете задать мне любой вопрос о бьюти-услугах.",
			"confirm":                      "Подтвердить",
			"cancel":                       "Отмена",
		},
	}}
}

// Lookup resolves key for the given language and formats it with args.
// A missing key returns "".
func (t *Translations) Lookup(key, lang string, args ...any) string {
	table, ok := t.tables[lang]
	if !ok {
		table = t.tables[fallbackLanguage]
	}
	template, ok := table[key]
	if !ok {
		// Fall back to English before giving up on the key entirely.
		template = t.tables[fallbackLanguage][key]
	}
	if template == "" {
		return ""
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// Languages returns the supported language codes.
func (t *Translations) Languages() []string {
	return []string{"en", "ru"}
}

// Has reports whether lang has its own translation table.
func (t *Translations) Has(lang string) bool {
	_, ok := t.tables[lang]
	return ok
}
