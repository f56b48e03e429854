package summary

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sjawhar/roomline/internal/catalog"
	"github.com/sjawhar/roomline/internal/transcript"
)

const excerptLimit = 50

var roomPattern = regexp.MustCompile(`(?i)(?:room|phòng)\s*(?:number|no\.?|số|#)?\s*:?\s*(\d{1,4}[a-z]?)(?:$|[^\p{L}\p{N}])`)

type keywordFamily struct {
	category catalog.Category
	pattern  *regexp.Regexp
	detail   string
}

// wordsPattern matches any of the phrases as whole words, treating non-ASCII
// letters as word characters.
func wordsPattern(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

var families = []keywordFamily{
	{
		category: catalog.RoomService,
		pattern: wordsPattern("food", "breakfast", "lunch", "dinner", "burger", "burgers", "pizza", "sandwich", "salad",
			"drink", "drinks", "juice", "coffee", "tea", "water", "wine", "beer", "menu", "room service", "snack",
			"đồ ăn", "món", "bữa sáng", "bữa tối", "nước", "cà phê"),
		detail: "Guest requested food or beverage delivery. Prepare the items and deliver to the room.",
	},
	{
		category: catalog.Housekeeping,
		pattern: wordsPattern("towel", "towels", "clean", "cleaning", "housekeeping", "sheets", "pillow", "pillows",
			"blanket", "laundry", "toiletries", "khăn", "dọn phòng", "giặt"),
		detail: "Guest requested housekeeping. Schedule cleaning or amenity replenishment.",
	},
	{
		category: catalog.Transportation,
		pattern: wordsPattern("taxi", "airport", "car", "shuttle", "transport", "transportation", "pickup", "pick up",
			"ride", "limousine", "xe", "sân bay", "đưa đón"),
		detail: "Guest requested transportation. Confirm pickup time, destination and vehicle.",
	},
	{
		category: catalog.Spa,
		pattern:  wordsPattern("spa", "massage", "facial", "sauna", "mát xa", "xông hơi"),
		detail:   "Guest requested a spa service. Check therapist availability and confirm the booking.",
	},
	{
		category: catalog.Tours,
		pattern:  wordsPattern("tour", "tours", "sightseeing", "excursion", "trip", "city tour", "tham quan", "du lịch"),
		detail:   "Guest asked about tours. Share available itineraries and reserve seats.",
	},
	{
		category: catalog.TechnicalSupport,
		pattern: wordsPattern("wifi", "wi-fi", "internet", "tv", "television", "remote", "air conditioner", "aircon",
			"broken", "not working", "kỹ thuật", "điều hòa", "hỏng"),
		detail: "Guest reported a technical issue. Dispatch maintenance to inspect the room.",
	},
	{
		category: catalog.Concierge,
		pattern: wordsPattern("concierge", "reservation", "restaurant", "ticket", "tickets", "recommend", "recommendation",
			"information", "đặt bàn", "nhà hàng", "tư vấn"),
		detail: "Guest needs concierge assistance. Follow up with recommendations or bookings.",
	},
	{
		category: catalog.Wellness,
		pattern:  wordsPattern("gym", "fitness", "yoga", "pool", "swimming", "wellness", "phòng tập", "hồ bơi"),
		detail:   "Guest asked about wellness facilities. Share opening hours and reserve if needed.",
	},
	{
		category: catalog.Security,
		pattern:  wordsPattern("security", "lost", "stolen", "safe", "emergency", "key card", "locked out", "an ninh", "mất"),
		detail:   "Guest raised a security concern. Alert security staff immediately.",
	},
	{
		category: catalog.SpecialOccasion,
		pattern: wordsPattern("birthday", "anniversary", "honeymoon", "celebration", "cake", "flowers", "surprise",
			"sinh nhật", "kỷ niệm", "hoa"),
		detail: "Guest mentioned a special occasion. Coordinate decorations or amenities.",
	},
}

type heuristicText struct {
	Title        string
	Room         string
	NotSpecified string
	Categories   string
	None         string
	Request      string
	Excerpt      string
	NextStep     string
	Insufficient string
}

var heuristicTexts = map[string]heuristicText{
	"en": {
		Title:        "CALL SUMMARY",
		Room:         "Room Number",
		NotSpecified: "Not specified",
		Categories:   "Service Categories",
		None:         "None detected",
		Request:      "REQUEST",
		Excerpt:      "Conversation excerpt",
		NextStep:     "Please review and confirm your order to proceed.",
		Insufficient: "Not enough information was captured during this call to produce a summary.",
	},
	"vi": {
		Title:        "TÓM TẮT CUỘC GỌI",
		Room:         "Số phòng",
		NotSpecified: "Không xác định",
		Categories:   "Loại dịch vụ",
		None:         "Không phát hiện",
		Request:      "YÊU CẦU",
		Excerpt:      "Trích đoạn hội thoại",
		NextStep:     "Vui lòng xem lại và xác nhận đơn hàng để tiếp tục.",
		Insufficient: "Cuộc gọi không có đủ thông tin để tạo bản tóm tắt.",
	},
	"fr": {
		Title:        "RÉSUMÉ DE L'APPEL",
		Room:         "Numéro de chambre",
		NotSpecified: "Non précisé",
		Categories:   "Catégories de service",
		None:         "Aucune détectée",
		Request:      "DEMANDE",
		Excerpt:      "Extrait de la conversation",
		NextStep:     "Veuillez vérifier et confirmer votre commande pour continuer.",
		Insufficient: "Cet appel ne contient pas assez d'informations pour produire un résumé.",
	},
	"ko": {
		Title:        "통화 요약",
		Room:         "객실 번호",
		NotSpecified: "지정되지 않음",
		Categories:   "서비스 유형",
		None:         "감지되지 않음",
		Request:      "요청",
		Excerpt:      "대화 발췌",
		NextStep:     "주문 내용을 확인하고 승인해 주세요.",
		Insufficient: "이 통화에서 요약을 작성할 만큼 충분한 정보가 수집되지 않았습니다.",
	},
	"zh": {
		Title:        "通话摘要",
		Room:         "房间号",
		NotSpecified: "未说明",
		Categories:   "服务类别",
		None:         "未检测到",
		Request:      "请求",
		Excerpt:      "对话摘录",
		NextStep:     "请查看并确认您的订单以继续。",
		Insufficient: "本次通话获取的信息不足，无法生成摘要。",
	},
	"ru": {
		Title:        "СВОДКА ЗВОНКА",
		Room:         "Номер комнаты",
		NotSpecified: "Не указан",
		Categories:   "Категории услуг",
		None:         "Не обнаружено",
		Request:      "ЗАПРОС",
		Excerpt:      "Фрагмент разговора",
		NextStep:     "Пожалуйста, проверьте и подтвердите заказ, чтобы продолжить.",
		Insufficient: "Во время звонка получено недостаточно информации для составления сводки.",
	},
}

func textsFor(language string) heuristicText {
	if t, ok := heuristicTexts[baseLanguage(language)]; ok {
		return t
	}
	return heuristicTexts["en"]
}

// baseLanguage reduces "vi-VN" or "EN_us" to "vi" / "en".
func baseLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// ExtractRoomNumber returns the first room number mentioned in text, uppercased,
// or "" when none is found.
func ExtractRoomNumber(text string) string {
	m := roomPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// DetectCategories returns the service categories mentioned anywhere in the
// transcript, in catalog order.
func DetectCategories(entries []transcript.Entry) []catalog.Category {
	text := transcript.Lines(entries)
	var found []catalog.Category
	for _, f := range families {
		if f.pattern.MatchString(text) {
			found = append(found, f.category)
		}
	}
	return found
}

// RoomFromTranscript scans entries in order for a room number.
func RoomFromTranscript(entries []transcript.Entry) string {
	for _, e := range entries {
		if room := ExtractRoomNumber(e.Text); room != "" {
			return room
		}
	}
	return ""
}

// HeuristicSummary builds a templated summary from keyword and pattern
// matches. It does no I/O and always returns non-empty text.
func HeuristicSummary(entries []transcript.Entry, language string) string {
	texts := textsFor(language)
	if len(entries) == 0 || strings.TrimSpace(transcript.Lines(entries)) == "" {
		return texts.Insufficient
	}

	room := RoomFromTranscript(entries)
	if room == "" {
		room = texts.NotSpecified
	}

	categories := DetectCategories(entries)
	labels := make([]string, len(categories))
	for i, c := range categories {
		labels[i] = c.Label()
	}
	categoryLine := texts.None
	if len(labels) > 0 {
		categoryLine = strings.Join(labels, ", ")
	}

	var b strings.Builder
	b.WriteString(texts.Title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %s\n", texts.Room, room)
	fmt.Fprintf(&b, "%s: %s\n", texts.Categories, categoryLine)

	n := 0
	for _, f := range families {
		if !containsCategory(categories, f.category) {
			continue
		}
		n++
		fmt.Fprintf(&b, "\n%s %d: %s\n- %s\n", texts.Request, n, f.category.Label(), f.detail)
	}

	firstGuest, lastAssistant := excerptLines(entries)
	if firstGuest != "" || lastAssistant != "" {
		fmt.Fprintf(&b, "\n%s:\n", texts.Excerpt)
		if firstGuest != "" {
			fmt.Fprintf(&b, "- %s: \"%s\"\n", transcript.SpeakerGuest.Label(), truncate(firstGuest, excerptLimit))
		}
		if lastAssistant != "" {
			fmt.Fprintf(&b, "- %s: \"%s\"\n", transcript.SpeakerAssistant.Label(), truncate(lastAssistant, excerptLimit))
		}
	}

	b.WriteString("\n")
	b.WriteString(texts.NextStep)
	return b.String()
}

func excerptLines(entries []transcript.Entry) (firstGuest, lastAssistant string) {
	for _, e := range entries {
		if e.Speaker == transcript.SpeakerGuest && strings.TrimSpace(e.Text) != "" {
			firstGuest = strings.TrimSpace(e.Text)
			break
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker == transcript.SpeakerAssistant && strings.TrimSpace(entries[i].Text) != "" {
			lastAssistant = strings.TrimSpace(entries[i].Text)
			break
		}
	}
	return firstGuest, lastAssistant
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func containsCategory(list []catalog.Category, c catalog.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
