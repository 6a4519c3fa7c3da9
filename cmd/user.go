package cmd

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, optionally with the admin role",
	RunE:  runUserCreate,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	flags := userCreateCmd.Flags()
	flags.String("name", "", "display name")
	flags.String("email", "", "login email")
	flags.String("password", "", "login password")
	flags.Bool("admin", false, "grant the admin role")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	admin, _ := cmd.Flags().GetBool("admin")

	if len(password) < 6 {
		return errors.New("password must be at least 6 characters long")
	}
	if name == "" {
		name = email
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, err := database.NewStore(db)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	role := model.RoleUser
	if admin {
		role = model.RoleAdmin
	}
	user, err := store.CreateUser(cmd.Context(), model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if errors.Is(err, model.ErrConflict) {
		return fmt.Errorf("email %s already registered", email)
	}
	if err != nil {
		return err
	}

	log.Infof("created %s account %s (%s)", user.Role, user.Email, user.ID)
	return nil
}
