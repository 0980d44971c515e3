package app

import (
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/telegram"
)

const (
	buttonRegional      = "🔍 Поиск новостей"
	buttonInternational = "🌍 Международные источники"
	buttonFresh         = "⚡ Свежие новости"
	buttonQuick         = "📊 Быстрый поиск"
)

// buttons maps menu labels to modes.
var buttons = map[string]news.Mode{
	buttonRegional:      news.ModeRegional,
	buttonInternational: news.ModeInternational,
	buttonFresh:         news.ModeFresh,
	buttonQuick:         news.ModeQuick,
}

func mainKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(
		[]string{buttonRegional, buttonInternational},
		[]string{buttonFresh, buttonQuick},
	)
}

const welcomeText = "🌐 Универсальный поиск новостей об ЭПР\n\n" +
	"🔍 Поиск новостей – российские источники\n" +
	"🌍 Международные источники – только зарубежные СМИ\n" +
	"⚡ Свежие новости – актуальные статьи\n" +
	"📊 Быстрый поиск – российские и международные источники сразу\n\n" +
	"Просто напишите что ищете!"

const helpText = "📖 Универсальный поиск новостей об ЭПР\n\n" +
	"🔍 Поиск новостей – российские источники\n" +
	"🌍 Международные источники – только зарубежные СМИ\n" +
	"⚡ Свежие новости – поиск актуальных статей за сегодня\n" +
	"📊 Быстрый поиск – результаты по всем источникам\n\n" +
	"💡 Примеры запросов:\n" +
	"• ЭПР в финансах\n" +
	"• регуляторная песочница\n" +
	"• новые правила ЭПР\n" +
	"• Russia fintech regulation\n\n" +
	"Выбранный режим сохраняется до следующего нажатия кнопки."

var prompts = map[news.Mode]string{
	news.ModeRegional:      "🔍 Напишите запрос для поиска новостей:",
	news.ModeInternational: "🌍 Напишите запрос для поиска в международных источниках:",
	news.ModeQuick:         "📊 Напишите запрос для быстрого поиска по всем источникам:",
}

const (
	searchingText      = "🔍 Ищу новости по запросу: '%s'..."
	searchingFreshText = "⚡ Ищу самые свежие новости"
	nothingFoundText   = "😔 По запросу '%s' не найдено новостей.\n\n💡 Попробуйте изменить формулировку запроса."
	nothingFreshText   = "😔 Не удалось найти свежие новости за сегодня.\n\n💡 Попробуйте использовать поиск по конкретному запросу."
	searchFailedText   = "❌ Ошибка при поиске. Попробуйте другой запрос."
	freshFailedText    = "❌ Ошибка при поиске свежих новостей. Попробуйте позже."
	unknownCommandText = "Неизвестная команда. Отправьте /help, чтобы увидеть подсказку."
)
