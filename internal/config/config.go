package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Confidence struct {
		ASRWeight        float64
		NLUWeight        float64
		AmbiguityPenalty float64
	}
	Policy struct {
		ConfidenceLimit float64
		MaxAmbiguity    int
		CacheSize       int
	}
	Classifier struct {
		URL         string
		APIKey      string
		Model       string
		TimeoutSecs int
	}
	Responder struct {
		URL         string
		APIKey      string
		Model       string
		TimeoutSecs int
	}
	Call struct {
		Greeting      string
		Clarification string
		Apology       string
		Goodbye       string
		ContextTurns  int
	}
	Report struct {
		DBPath string
	}
	WS struct {
		TokenSecret   string
		TokenExpMin   int
		TokenSkewSecs int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("confidence.asr_weight", 0.4)
	v.SetDefault("confidence.nlu_weight", 0.6)
	v.SetDefault("confidence.ambiguity_penalty", 0.15)

	v.SetDefault("policy.confidence_limit", 0.3)
	v.SetDefault("policy.max_ambiguity", 3)
	v.SetDefault("policy.cache_size", 256)

	v.SetDefault("classifier.url", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("classifier.model", "llama-3.3-70b-versatile")
	v.SetDefault("classifier.timeout_secs", 8)

	v.SetDefault("responder.url", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("responder.model", "llama-3.3-70b-versatile")
	v.SetDefault("responder.timeout_secs", 10)

	v.SetDefault("call.greeting", "Bonjour ! Je suis votre assistant vocal pour l'assurance. Comment puis-je vous aider ?")
	v.SetDefault("call.clarification", "Je n'ai pas bien compris. Pourriez-vous préciser votre demande ?")
	v.SetDefault("call.apology", "Je suis désolé, je n'ai pas pu générer de réponse.")
	v.SetDefault("call.goodbye", "Au revoir ! L'appel est terminé.")
	v.SetDefault("call.context_turns", 5)

	v.SetDefault("report.db_path", "data/callbot.db")

	v.SetDefault("ws.token_exp_min", 30)
	v.SetDefault("ws.token_skew_secs", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("confidence.asr_weight", "CONFIDENCE_ASR_WEIGHT")
	v.BindEnv("confidence.nlu_weight", "CONFIDENCE_NLU_WEIGHT")
	v.BindEnv("confidence.ambiguity_penalty", "CONFIDENCE_AMBIGUITY_PENALTY")

	v.BindEnv("policy.confidence_limit", "POLICY_CONFIDENCE_LIMIT")
	v.BindEnv("policy.max_ambiguity", "POLICY_MAX_AMBIGUITY")
	v.BindEnv("policy.cache_size", "POLICY_CACHE_SIZE")

	v.BindEnv("classifier.url", "CLASSIFIER_URL")
	v.BindEnv("classifier.api_key", "CLASSIFIER_API_KEY", "GROQ_API_KEY")
	v.BindEnv("classifier.model", "CLASSIFIER_MODEL")
	v.BindEnv("classifier.timeout_secs", "CLASSIFIER_TIMEOUT_SECS")

	v.BindEnv("responder.url", "RESPONDER_URL")
	v.BindEnv("responder.api_key", "RESPONDER_API_KEY", "GROQ_API_KEY")
	v.BindEnv("responder.model", "RESPONDER_MODEL")
	v.BindEnv("responder.timeout_secs", "RESPONDER_TIMEOUT_SECS")

	v.BindEnv("call.greeting", "CALL_GREETING")
	v.BindEnv("call.clarification", "CALL_CLARIFICATION_PROMPT")
	v.BindEnv("call.apology", "CALL_APOLOGY")
	v.BindEnv("call.goodbye", "CALL_GOODBYE")
	v.BindEnv("call.context_turns", "CALL_CONTEXT_TURNS")

	v.BindEnv("report.db_path", "REPORT_DB_PATH")

	v.BindEnv("ws.token_secret", "WS_TOKEN_SECRET")
	v.BindEnv("ws.token_exp_min", "WS_TOKEN_EXP_MIN")
	v.BindEnv("ws.token_skew_secs", "WS_TOKEN_SKEW_SECS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Confidence.ASRWeight = v.GetFloat64("confidence.asr_weight")
	c.Confidence.NLUWeight = v.GetFloat64("confidence.nlu_weight")
	c.Confidence.AmbiguityPenalty = v.GetFloat64("confidence.ambiguity_penalty")

	c.Policy.ConfidenceLimit = v.GetFloat64("policy.confidence_limit")
	c.Policy.MaxAmbiguity = v.GetInt("policy.max_ambiguity")
	c.Policy.CacheSize = v.GetInt("policy.cache_size")

	c.Classifier.URL = v.GetString("classifier.url")
	c.Classifier.APIKey = v.GetString("classifier.api_key")
	c.Classifier.Model = v.GetString("classifier.model")
	c.Classifier.TimeoutSecs = v.GetInt("classifier.timeout_secs")

	c.Responder.URL = v.GetString("responder.url")
	c.Responder.APIKey = v.GetString("responder.api_key")
	c.Responder.Model = v.GetString("responder.model")
	c.Responder.TimeoutSecs = v.GetInt("responder.timeout_secs")

	c.Call.Greeting = v.GetString("call.greeting")
	c.Call.Clarification = v.GetString("call.clarification")
	c.Call.Apology = v.GetString("call.apology")
	c.Call.Goodbye = v.GetString("call.goodbye")
	c.Call.ContextTurns = v.GetInt("call.context_turns")

	c.Report.DBPath = v.GetString("report.db_path")

	c.WS.TokenSecret = v.GetString("ws.token_secret")
	c.WS.TokenExpMin = v.GetInt("ws.token_exp_min")
	c.WS.TokenSkewSecs = v.GetInt("ws.token_skew_secs")

	log.Printf("config loaded: port=%s max_ambiguity=%d confidence_limit=%.2f",
		c.Server.Port, c.Policy.MaxAmbiguity, c.Policy.ConfidenceLimit)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
