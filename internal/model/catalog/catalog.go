package catalog

import "github.com/zhouzirui/calm-companion/backend/internal/analysis/support"

// CrisisMessage is the only reply ever produced for the crisis tag.
const CrisisMessage = "It sounds urgent. I care about your safety. If you might harm yourself or others, please contact local emergency services or use the Crisis Support button for immediate help."

// Default provides the canned supportive replies shared by the server and the chat client.
func Default() map[support.Tag][]string {
	return map[support.Tag][]string{
		support.Onboarding: {
			"Hi, I’m here to listen. How are you feeling today?",
		},
		support.Overwhelmed: {
			"I'm sorry it feels like a lot right now. Let’s take one small step together. What’s one thing you can put down or delay today?",
			"Your feelings are valid. It’s okay to pause. Try placing a hand on your chest and taking 3 slow breaths with me.",
		},
		support.Encouragement: {
			"You’ve made it through hard days before. I’m proud of you for reaching out.",
			"Progress isn’t linear, and that’s okay. Small steps still count.",
		},
		support.Coping: {
			"Coping idea: 4-4-6 breathing. Inhale 4s, hold 4s, exhale 6s. Repeat 5 times.",
			"Coping idea: Grounding. Look for 5 things you can see, 4 you can touch, 3 you can hear, 2 you can smell, 1 you can taste.",
		},
		support.Crisis: {
			CrisisMessage,
		},
		support.General: {
			"Thank you for sharing that. I’m here with you. What would feel supportive right now?",
			"That sounds tough. Would you like encouragement, a coping strategy, or just space to vent?",
		},
	}
}
