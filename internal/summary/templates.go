package summary

import "strings"

// DefaultLanguage is used when a call carries no language or an unknown one.
const DefaultLanguage = "en"

type promptTemplate struct {
	System       string
	Instructions string
	NextStep     string
	NotSpecified string
}

var promptTemplates = map[string]promptTemplate{
	"en": {
		System: "You are the front-desk assistant of a hotel. You write concise, accurate call summaries for hotel staff.",
		Instructions: `Summarize the following call between a hotel guest and the assistant.

1. Find the guest's room number and name. Write "Not specified" for anything that was not said.
2. List every distinct request the guest made as "REQUEST n: <service>". Do not limit the number of requests.
   Under each request add bullets for:
   - Timing
   - Order details (items, quantities, prices if mentioned)
   - Special requirements
3. End with exactly this sentence: "%s"`,
		NextStep:     "Please review and confirm your order to proceed.",
		NotSpecified: "Not specified",
	},
	"vi": {
		System: "Bạn là trợ lý lễ tân của khách sạn. Bạn viết bản tóm tắt cuộc gọi ngắn gọn, chính xác cho nhân viên.",
		Instructions: `Tóm tắt cuộc gọi sau giữa khách và trợ lý khách sạn.

1. Tìm số phòng và tên khách. Ghi "Không xác định" nếu không được nhắc đến.
2. Liệt kê mọi yêu cầu riêng biệt dưới dạng "YÊU CẦU n: <dịch vụ>". Không giới hạn số lượng yêu cầu.
   Dưới mỗi yêu cầu thêm các gạch đầu dòng:
   - Thời gian
   - Chi tiết đơn hàng
   - Yêu cầu đặc biệt
3. Kết thúc bằng đúng câu: "%s"`,
		NextStep:     "Vui lòng xem lại và xác nhận đơn hàng để tiếp tục.",
		NotSpecified: "Không xác định",
	},
	"fr": {
		System: "Vous êtes l'assistant de la réception d'un hôtel. Vous rédigez des résumés d'appel concis et exacts pour le personnel.",
		Instructions: `Résumez l'appel suivant entre un client de l'hôtel et l'assistant.

1. Trouvez le numéro de chambre et le nom du client. Écrivez "Non précisé" pour toute information absente.
2. Listez chaque demande distincte sous la forme "DEMANDE n : <service>". Ne limitez pas le nombre de demandes.
   Sous chaque demande, ajoutez des puces pour :
   - Horaire
   - Détails de la commande
   - Exigences particulières
3. Terminez exactement par cette phrase : "%s"`,
		NextStep:     "Veuillez vérifier et confirmer votre commande pour continuer.",
		NotSpecified: "Non précisé",
	},
	"ko": {
		System: "당신은 호텔 프런트 데스크 어시스턴트입니다. 직원을 위해 간결하고 정확한 통화 요약을 작성합니다.",
		Instructions: `다음 호텔 투숙객과 어시스턴트 간의 통화를 요약하세요.

1. 투숙객의 객실 번호와 이름을 찾으세요. 언급되지 않은 정보는 "명시되지 않음"으로 쓰세요.
2. 투숙객의 모든 개별 요청을 "요청 n: <서비스>" 형식으로 나열하세요. 요청 수를 제한하지 마세요.
   각 요청 아래에 다음 항목을 추가하세요:
   - 시간
   - 주문 세부 정보
   - 특별 요청 사항
3. 다음 문장으로 정확히 끝내세요: "%s"`,
		NextStep:     "주문을 검토하고 확인해 주세요.",
		NotSpecified: "명시되지 않음",
	},
	"zh": {
		System: "你是酒店前台助理，为员工撰写简洁准确的通话摘要。",
		Instructions: `请总结以下酒店客人与助理之间的通话。

1. 找出客人的房间号和姓名。未提及的信息写"未指定"。
2. 将客人的每一个独立请求列为"请求 n：<服务>"。不要限制请求数量。
   在每个请求下添加以下要点：
   - 时间
   - 订单详情
   - 特殊要求
3. 以这句话结尾："%s"`,
		NextStep:     "请核对并确认您的订单以继续。",
		NotSpecified: "未指定",
	},
	"ru": {
		System: "Вы ассистент стойки регистрации отеля. Вы пишете краткие и точные резюме звонков для персонала.",
		Instructions: `Кратко изложите следующий звонок между гостем отеля и ассистентом.

1. Найдите номер комнаты и имя гостя. Пишите "Не указано", если информация не прозвучала.
2. Перечислите каждую отдельную просьбу гостя как "ЗАПРОС n: <услуга>". Не ограничивайте количество запросов.
   Под каждым запросом добавьте пункты:
   - Время
   - Детали заказа
   - Особые требования
3. Закончите ровно этой фразой: "%s"`,
		NextStep:     "Пожалуйста, проверьте и подтвердите заказ, чтобы продолжить.",
		NotSpecified: "Не указано",
	},
}

// Languages lists the languages with a dedicated summary prompt.
func Languages() []string {
	return []string{"en", "vi", "fr", "ko", "zh", "ru"}
}

// NormalizeLanguage maps a language tag onto a supported template key,
// falling back to English.
func NormalizeLanguage(language string) string {
	lang := baseLanguage(language)
	if _, ok := promptTemplates[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

func templateFor(language string) promptTemplate {
	return promptTemplates[NormalizeLanguage(language)]
}

func (t promptTemplate) instructions() string {
	return strings.Replace(t.Instructions, "%s", t.NextStep, 1)
}
