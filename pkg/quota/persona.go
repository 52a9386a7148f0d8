package quota

import "math/rand"

// Chatbot rejections must stay in character: instead of an error the user
// gets an out-of-budget message matching the store's persona tone.

const (
	ToneFormal   = "formal"
	ToneFriendly = "friendly"
	ToneCasual   = "casual"
)

var outOfBudgetTemplates = map[string][]string{
	ToneFormal: {
		"申し訳ございません。今月のご案内可能な件数の上限に達いたしました。お手数ですがお電話にてお問い合わせくださいませ。",
		"誠に恐れ入りますが、今月のチャット対応枠が上限に達しております。お急ぎの場合は店舗まで直接ご連絡ください。",
	},
	ToneFriendly: {
		"ごめんなさい、今月のチャット対応が上限になっちゃいました。お急ぎならお店に直接お電話くださいね。",
		"すみません！今月お答えできる回数を使い切ってしまいました。来月またお話ししましょう。お急ぎの方はお電話でどうぞ。",
	},
	ToneCasual: {
		"ごめん、今月はもうチャットの枠がいっぱい!急ぎなら店に電話して〜",
		"あちゃー、今月のおしゃべり分は使い切っちゃった。用事があったら電話してね!",
	},
}

// OutOfBudgetMessage picks a persona-flavored message for the tone bucket,
// chosen at random within the bucket. Unknown tones fall back to formal.
func OutOfBudgetMessage(tone string) string {
	templates, ok := outOfBudgetTemplates[tone]
	if !ok {
		templates = outOfBudgetTemplates[ToneFormal]
	}
	return templates[rand.Intn(len(templates))]
}
