package oracle

import (
	"fmt"
	"strings"
)

const instructions = `Analyze this %s chat screenshot.

Task:
1. Check if there's a recent message that needs a reply (look at the LAST message in the chat)
2. If yes, read the message content
3. Generate a SHORT, witty, contextual reply

Response format (JSON):
{
    "should_reply": true/false,
    "message_detected": "the actual message you see",
    "reply": "your witty response here"
}

Important rules:
- Only reply to the MOST RECENT message
- If it's just a casual "hi/hello", make it funny
- If it's "good morning", be creative (not boring)
- If it's a question, give a clever answer
- If it's spam/repeated, acknowledge it sarcastically
- Keep replies under 20 words
- Return ONLY valid JSON, no other text`

// BuildPrompt prepends the persona to the fixed analysis instructions.
// appName is how the screenshot is described to the model.
func BuildPrompt(personality, appName string) string {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = "chat"
	}
	body := fmt.Sprintf(instructions, appName)
	personality = strings.TrimSpace(personality)
	if personality == "" {
		return body
	}
	return personality + "\n\n" + body
}
