package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/coax-games/coax-api/internal/adapters/http"
	"github.com/coax-games/coax-api/internal/adapters/oracle"
	firestorestore "github.com/coax-games/coax-api/internal/adapters/storage/firestore"
	memstore "github.com/coax-games/coax-api/internal/adapters/storage/memory"
	sqlitestore "github.com/coax-games/coax-api/internal/adapters/storage/sqlite"
	"github.com/coax-games/coax-api/internal/app/game"
	"github.com/coax-games/coax-api/internal/config"
	"github.com/coax-games/coax-api/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Oracle backend
	var (
		replyOracle domain.ReplyOracle
		err         error
	)
	switch cfg.Oracle {
	case "gemini":
		log.Println("[ORACLE] Using Gemini (Vertex AI)")
		replyOracle, err = oracle.NewGeminiOracle(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("error initializing Gemini oracle: %v", err)
		}
	case "kimi":
		log.Println("[ORACLE] Using Moonshot (Kimi)")
		opts := []oracle.KimiOption{oracle.WithKimiModel(cfg.MoonshotModel)}
		if cfg.MoonshotBaseURL != "" {
			opts = append(opts, oracle.WithKimiBaseURL(cfg.MoonshotBaseURL))
		}
		replyOracle = oracle.NewKimiOracle(cfg.MoonshotAPIKey, opts...)
	default:
		log.Println("[ORACLE] Using offline rule oracle")
		replyOracle = oracle.NewRuleOracle()
	}

	// Storage: scene catalog + game records
	var (
		scenes  domain.SceneProvider
		records domain.RecordStore
	)
	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}
		scenes = fsStore
		records = fsStore

	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (path=%s)", cfg.SQLitePath)
		dbStore, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing SQLite store: %v", err)
		}
		if cfg.ScenesFile != "" {
			seedSQLiteScenes(ctx, dbStore, cfg.ScenesFile)
		}
		scenes = dbStore
		records = dbStore

	default:
		log.Println("[STORE] Using in-memory storage")
		var sceneStore *memstore.SceneStore
		if cfg.ScenesFile != "" {
			sceneStore, err = memstore.LoadSceneStore(cfg.ScenesFile)
			if err != nil {
				log.Fatalf("error loading scene catalog: %v", err)
			}
		} else {
			sceneStore = memstore.NewSceneStore()
			for _, sc := range defaultScenes() {
				sceneStore.AddScene(sc)
			}
		}
		scenes = sceneStore
		records = memstore.NewRecordStore()
	}

	svc := game.NewService(scenes, replyOracle, memstore.NewSessionStore(), records,
		game.WithOracleTimeout(cfg.OracleTimeout))

	handler := httpadapter.NewServer(svc)

	addr := ":" + cfg.Port
	log.Println("coax API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}

func seedSQLiteScenes(ctx context.Context, store *sqlitestore.Store, path string) {
	catalog, err := memstore.LoadSceneStore(path)
	if err != nil {
		log.Fatalf("error loading scene catalog: %v", err)
	}
	list, err := catalog.ListScenes(ctx, domain.SceneFilter{})
	if err != nil {
		log.Fatalf("error reading scene catalog: %v", err)
	}
	for _, sc := range list {
		if err := store.AddScene(ctx, *sc); err != nil {
			log.Fatalf("error seeding scene %s: %v", sc.ID, err)
		}
	}
	log.Printf("[STORE] Seeded %d scenes from %s", len(list), path)
}

// defaultScenes is the built-in demo catalog used when no scene file or
// external backend is configured.
func defaultScenes() []domain.Scene {
	return []domain.Scene{
		{
			ID:                 "girlfriend-forgot-anniversary",
			Title:              "忘记纪念日的女朋友",
			Category:           "恋爱",
			Role:               "女朋友",
			RoleGender:         "女",
			AngryReason:        "你居然忘了我们的纪念日，还说工作忙！",
			Difficulty:         "中",
			Status:             "active",
			InitialForgiveness: 20,
			MaxInteractions:    10,
		},
		{
			ID:                 "roommate-noise",
			Title:              "被吵醒的室友",
			Category:           "友情",
			Role:               "室友",
			RoleGender:         "男",
			AngryReason:        "凌晨三点你还在打游戏大喊大叫，我明天还要考试！",
			Difficulty:         "易",
			Status:             "active",
			InitialForgiveness: 30,
			MaxInteractions:    8,
		},
		{
			ID:                 "boss-missed-deadline",
			Title:              "错过交付的老板",
			Category:           "职场",
			Role:               "老板",
			RoleGender:         "男",
			AngryReason:        "项目延期三天了你才告诉我，客户都找上门了！",
			Difficulty:         "难",
			Status:             "active",
			InitialForgiveness: 10,
			MaxInteractions:    12,
		},
	}
}
