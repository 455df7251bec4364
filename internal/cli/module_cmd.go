package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/cursory/internal/course"
)

// newModulesCommand はmodulesコマンドを生成する。
func newModulesCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"module"},
		Short:   "コースのモジュールを管理する",
	}
	cmd.AddCommand(
		newModuleCreateCommand(st),
		newModuleGetCommand(st),
		newModuleUpdateCommand(st),
		newModuleDeleteCommand(st),
		newModuleGenerateCommand(st),
	)
	return cmd
}

func newModuleCreateCommand(st *cliState) *cobra.Command {
	var data course.CreateModuleData
	cmd := &cobra.Command{
		Use:   "create <courseId>",
		Short: "モジュールを作成する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			m, err := st.app.modules.Create(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return st.print(m)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Title, "title", "", "タイトル")
	f.StringVar(&data.Description, "description", "", "説明")
	f.IntVar(&data.Order, "order", 1, "コース内での順序（1始まり）")
	f.StringArrayVar(&data.Objectives, "objective", nil, "学習目標（複数指定可）")
	return cmd
}

func newModuleGetCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <courseId> <moduleId>",
		Short: "モジュールを表示する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			m, err := st.app.modules.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return st.print(m)
		},
	}
}

func newModuleUpdateCommand(st *cliState) *cobra.Command {
	var (
		title, description string
		order              int
		objectives         []string
	)
	cmd := &cobra.Command{
		Use:   "update <courseId> <moduleId>",
		Short: "指定したフィールドだけモジュールを更新する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			var data course.UpdateModuleData
			f := cmd.Flags()
			if f.Changed("title") {
				data.Title = &title
			}
			if f.Changed("description") {
				data.Description = &description
			}
			if f.Changed("order") {
				data.Order = &order
			}
			if f.Changed("objective") {
				data.Objectives = &objectives
			}
			m, err := st.app.modules.Update(cmd.Context(), args[0], args[1], data)
			if err != nil {
				return err
			}
			return st.print(m)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "タイトル")
	f.StringVar(&description, "description", "", "説明")
	f.IntVar(&order, "order", 0, "コース内での順序（1始まり）")
	f.StringArrayVar(&objectives, "objective", nil, "学習目標（指定すると全て置き換える）")
	return cmd
}

func newModuleDeleteCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <courseId> <moduleId>",
		Short: "モジュールを削除する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			if err := st.app.modules.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return st.print(map[string]string{"deleted": args[1]})
		},
	}
}

func newModuleGenerateCommand(st *cliState) *cobra.Command {
	var (
		data    course.GenerateModulesData
		skip    []int
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "generate <courseId>",
		Short: "AIでモジュール案を生成する",
		Long: `AIでモジュール案を生成して一時IDつきで表示します。
--confirm を指定すると、--skip で指定した番号の案を除いてから一括作成します。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			courseID := args[0]
			gen := course.NewModuleGeneration(st.app.modules)
			if _, err := gen.Generate(cmd.Context(), courseID, data); err != nil {
				return err
			}
			if !confirm {
				return st.print(gen.Items())
			}
			items := gen.Items()
			for _, n := range skip {
				if n < 1 || n > len(items) {
					return fmt.Errorf("--skip の番号は1から%dの範囲で指定してください: %d", len(items), n)
				}
				if err := gen.Remove(items[n-1].ID); err != nil {
					return err
				}
			}
			created, err := gen.Confirm(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			return st.print(created)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.SuggestedTopics, "topics", "", "扱うトピック（カンマ区切り）")
	f.IntVar(&data.NumberOfModules, "count", 5, "生成するモジュール数（1〜20）")
	f.StringVar(&data.Approach, "approach", "", "学習アプローチ")
	f.IntSliceVar(&skip, "skip", nil, "作成しない案の番号（1始まり、--confirm と併用）")
	f.BoolVar(&confirm, "confirm", false, "生成した案をそのまま一括作成する")
	return cmd
}
