package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Stands in for the OpenAI API during local runs: serves the transcription
// and chat completion endpoints with canned Portuguese sales dialogue.

type TranscriptionResponse struct {
	Text string `json:"text"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// Rotating client lines so the conversation tracker sees objections, buying
// signals and stage movement during a replay
var cannedTranscripts = []string{
	"Olá, queria entender melhor como funciona a solução de vocês",
	"Isso está muito caro para o nosso orçamento atual",
	"Não sei se tenho tempo para implementar isso agora",
	"Quanto custa a licença anual para dez usuários?",
	"Preciso pensar e conversar com meu sócio antes de decidir",
	"Gostei bastante, quando podemos começar a implantação?",
}

var cannedSuggestions = []string{
	"Pergunte qual orçamento ele tinha em mente e ancore no ROI de 6 meses. Divida o valor por usuário por dia.",
	"Valide a preocupação e mostre o plano de implantação de 2 semanas. Ofereça acompanhamento dedicado na primeira semana.",
	"Crie urgência: mencione que a condição atual vale até o fim do mês. Proponha fechar com um piloto pequeno.",
	"Descubra o critério de decisão do sócio e ofereça uma call conjunta. Mande um resumo de uma página hoje.",
}

var transcriptSeq, suggestionSeq atomic.Uint64

func transcriptionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	model := r.FormValue("model")
	language := r.FormValue("language")
	temperature := r.FormValue("temperature")

	// Get audio file
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Read file content to get size
	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("  ═══════════════════════════════════")
	log.Printf("    Model: %s", model)
	log.Printf("    Language: %s", language)
	log.Printf("    Temperature: %s", temperature)
	log.Printf("    Filename: %s", header.Filename)
	log.Printf("    Audio Size: %d bytes", len(audioData))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	seq := transcriptSeq.Add(1)
	response := TranscriptionResponse{
		Text: cannedTranscripts[int(seq-1)%len(cannedTranscripts)],
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func completionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	// The last message carries the prompt with the client utterance
	lastContent := ""
	if len(request.Messages) > 0 {
		lastContent = request.Messages[len(request.Messages)-1].Content
	}

	log.Printf("💬 COMPLETION REQUEST RECEIVED:")
	log.Printf("  ═══════════════════════════════════")
	log.Printf("    Model: %s", request.Model)
	log.Printf("    Messages: %d", len(request.Messages))
	log.Printf("    Temperature: %.2f", request.Temperature)
	log.Printf("    Max Tokens: %d", request.MaxTokens)
	log.Printf("    Prompt Size: %d chars", len(lastContent))

	// Simulate processing time
	time.Sleep(300 * time.Millisecond)

	seq := suggestionSeq.Add(1)
	content := cannedSuggestions[int(seq-1)%len(cannedSuggestions)]

	response := ChatResponse{
		ID:      fmt.Sprintf("chatcmpl-test-%d", seq),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   request.Model,
		Choices: []ChatChoice{
			{
				Index:        0,
				Message:      ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: ChatUsage{
			PromptTokens:     len(lastContent) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(lastContent) + len(content)) / 4,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ COMPLETION RESPONSE SENT: '%s'", content)
	log.Println("---")
}

func main() {
	http.HandleFunc("/v1/audio/transcriptions", transcriptionsHandler)
	http.HandleFunc("/v1/chat/completions", completionsHandler)

	port := ":9000"
	log.Printf("🚀 Test Services Server starting on port %s", port)
	log.Printf("📡 Transcription: http://localhost%s/v1/audio/transcriptions", port)
	log.Printf("📡 Completions: http://localhost%s/v1/chat/completions", port)
	log.Println("💡 Point both base_url values at: http://localhost:9000/v1")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
